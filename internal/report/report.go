// Package report formats Machine state for the CLI. It is a thin external
// collaborator: it only reads already-computed register/stack values and
// never participates in assembling or executing a program.
package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// RegisterSource supplies the values report needs without importing the vm
// package's full surface, keeping this package a leaf.
type RegisterSource interface {
	Registers() [16]uint64
	StackSlot(i int) uint64
}

var headerColor = color.New(color.FgHiBlack)

// DumpRegisters prints the 16 registers in two columns of 8, hex-formatted,
// matching the reference dump layout: "r0   0000000000000000   r1   ...".
func DumpRegisters(w io.Writer, m RegisterSource) {
	headerColor.Fprintln(w, "registers:")

	regs := m.Registers()
	for i := 0; i < 16; i += 2 {
		fmt.Fprintf(w, "r%-2d  %016X   r%-2d  %016X\n", i, regs[i], i+1, regs[i+1])
	}
}

// DumpStack prints the first n 64-bit slots of the Machine's stack region.
func DumpStack(w io.Writer, m RegisterSource, n int) {
	headerColor.Fprintln(w, "stack:")

	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "stack[%d]: %016X\n", i, m.StackSlot(i))
	}
}

// Fatalf prints a red diagnostic line. Used for lex/parse/link/runtime
// errors that stop the CLI before or during execution.
func Fatalf(w io.Writer, format string, args ...any) {
	color.New(color.FgRed).Fprintf(w, format+"\n", args...)
}
