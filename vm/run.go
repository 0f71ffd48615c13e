package vm

import (
	"runtime/debug"
)

// RunFast disables the garbage collector for the duration of execution and
// restores the previous GOGC afterward, matching the reference's rationale:
// everything the Machine needs is allocated up front (registers, memory,
// the decoded program), so the only allocation inside the tight execution
// loop would be from the GC itself.
func RunFast(m *Machine, program []Instruction) (Outcome, error) {
	previous := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(previous)

	return m.RunSafely(program)
}
