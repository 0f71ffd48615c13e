package vm

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Fixed register indices referenced directly by the execution loop.
const (
	regSP = RegSP
	regLR = RegLR
	regPC = RegPC
)

// sentinelPC is the all-ones program counter value used to mark "return
// from the top frame"; execution stops the instant pc takes this value.
const sentinelPC = ^uint64(0)

const (
	defaultMemorySize = 1 << 20 // 1 MiB address space shared by Load/Store and the stack
	stackSlots        = 4096
	stackBytes        = stackSlots * 8
)

// Outcome classifies how a Run call ended.
type Outcome int

const (
	// OutcomeHalted means pc reached the sentinel or ran past the end
	// of the program; this is clean termination.
	OutcomeHalted Outcome = iota
	// OutcomeFault means execution stopped on an *ExecError.
	OutcomeFault
)

func (o Outcome) String() string {
	if o == OutcomeFault {
		return "fault"
	}
	return "halted"
}

// ExecError reports a runtime fault together with the instruction index
// that raised it, so a hosting process can diagnose without a panic.
type ExecError struct {
	Err error
	PC  int
}

func (e *ExecError) Error() string {
	return errors.Wrapf(e.Err, "at instruction %d", e.PC).Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

var (
	errDivByZero      = errors.New("division by zero")
	errModByZero      = errors.New("modulo by zero")
	errOutOfBounds    = errors.New("memory access out of bounds")
	errStackOverflow  = errors.New("stack overflow")
	errStackUnderflow = errors.New("stack underflow")
)

// CmpFlags is the result of the most recent Cmp instruction: the sign of
// Dest - operand. No mnemonic in this grammar consumes it yet; it is kept
// on the Machine for a future conditional-branch extension.
type CmpFlags struct {
	Zero     bool
	Negative bool
}

// Machine is a register VM: a 16-register file, a byte-addressable memory
// region shared by Load/Store and the call stack, and a decoded program.
// It is not reentrant across goroutines; callers own synchronization.
type Machine struct {
	registers [16]uint64
	flags     CmpFlags

	memory     []byte
	stackBase  uint64
	stackLimit uint64

	stdout *bufio.Writer

	// Trace, when non-nil, is called with the program counter and the
	// instruction about to execute, before it runs.
	Trace func(pc int, ins Instruction)
}

// NewMachine constructs a Machine with the default memory size and stdout
// as its syscall-0 output sink.
func NewMachine() *Machine {
	return NewMachineWithOutput(os.Stdout)
}

// NewMachineWithOutput constructs a Machine writing SysCall 0 output to w.
func NewMachineWithOutput(w io.Writer) *Machine {
	mem := make([]byte, defaultMemorySize)
	stackBase := uint64(defaultMemorySize - stackBytes)

	return &Machine{
		memory:     mem,
		stackBase:  stackBase,
		stackLimit: stackBase + stackBytes,
		stdout:     bufio.NewWriter(w),
	}
}

// Registers returns a snapshot of the 16 registers.
func (m *Machine) Registers() [16]uint64 {
	return m.registers
}

// SetRegister seeds a register before Run; primarily used by tests and by
// callers wiring an external memory cell's address into r0 and similar.
func (m *Machine) SetRegister(i int, v uint64) {
	m.registers[i] = v
}

// Memory exposes the Machine's backing address space, so a caller can seed
// or inspect host-addressed data the way the reference's raw pointers did.
func (m *Machine) Memory() []byte {
	return m.memory
}

// StackSlot reads the i'th 64-bit slot from the base of the stack region,
// used by the CLI's post-execution dump.
func (m *Machine) StackSlot(i int) uint64 {
	off := m.stackBase + uint64(i*8)
	if off+8 > uint64(len(m.memory)) {
		return 0
	}
	return binary.LittleEndian.Uint64(m.memory[off : off+8])
}

// Run executes program from pc=0 until it halts or faults. sp is reset to
// the stack base and lr to the sentinel on every call, per the Machine's
// per-execute reset contract.
func (m *Machine) Run(program []Instruction) (Outcome, error) {
	defer m.flushOutput()

	labels, err := ResolveLabels(program)
	if err != nil {
		return OutcomeFault, &ExecError{Err: err, PC: -1}
	}

	m.registers[regSP] = m.stackBase
	m.registers[regLR] = sentinelPC

	pc := 0
	for pc >= 0 && pc < len(program) {
		ins := program[pc]
		if m.Trace != nil {
			m.Trace(pc, ins)
		}

		m.registers[regPC] = uint64(pc)

		next, err := m.step(pc, ins, labels)
		if err != nil {
			return OutcomeFault, &ExecError{Err: err, PC: pc}
		}
		if next == sentinelPC {
			return OutcomeHalted, nil
		}
		pc = int(next)
	}

	return OutcomeHalted, nil
}

func (m *Machine) flushOutput() {
	if m.stdout != nil {
		m.stdout.Flush()
	}
}

// step executes a single instruction and returns the next pc. A returned
// value of sentinelPC means "halt"; any other value is the next index to
// execute (already accounting for instructions that branch directly).
func (m *Machine) step(pc int, ins Instruction, labels map[string]int) (uint64, error) {
	r := &m.registers

	switch ins.Kind {
	case Mov:
		if ins.WithValue {
			r[ins.Dest] = ins.Value
		} else {
			r[ins.Dest] = r[ins.Src]
		}

	case Cmp:
		rhs := r[ins.Src]
		if ins.WithValue {
			rhs = ins.Value
		}
		diff := r[ins.Dest] - rhs
		m.flags = CmpFlags{Zero: diff == 0, Negative: int64(diff) < 0}

	case Add:
		r[ins.Dest] = r[ins.Src] + m.operand2(ins)
	case Sub:
		r[ins.Dest] = r[ins.Src] - m.operand2(ins)
	case Mul:
		r[ins.Dest] = r[ins.Src] * m.operand2(ins)
	case Div:
		divisor := m.operand2(ins)
		if divisor == 0 {
			return 0, errDivByZero
		}
		r[ins.Dest] = r[ins.Src] / divisor
	case Mod:
		divisor := m.operand2(ins)
		if divisor == 0 {
			return 0, errModByZero
		}
		r[ins.Dest] = r[ins.Src] % divisor
	case Lst:
		r[ins.Dest] = r[ins.Src] << m.operand2(ins)
	case Rst:
		r[ins.Dest] = r[ins.Src] >> m.operand2(ins)

	case Load:
		addr := r[ins.Base] + ins.Offset
		val, err := m.readMemory(addr, ins.DataType)
		if err != nil {
			return 0, err
		}
		r[ins.Dest] = val
		r[ins.Base] += ins.PostIncrement

	case Store:
		addr := r[ins.Base] + ins.Offset
		if err := m.writeMemory(addr, ins.DataType, r[ins.Src]); err != nil {
			return 0, err
		}
		r[ins.Base] += ins.PostIncrement

	case Push:
		for i := 15; i >= 0; i-- {
			if !containsReg(ins.Reglist, i) {
				continue
			}
			if r[regSP] >= m.stackLimit {
				return 0, errStackOverflow
			}
			binary.LittleEndian.PutUint64(m.memory[r[regSP]:r[regSP]+8], r[i])
			r[regSP] += 8
		}

	case Pop:
		for i := 0; i < 16; i++ {
			if !containsReg(ins.Reglist, i) {
				continue
			}
			if r[regSP] <= m.stackBase {
				return 0, errStackUnderflow
			}
			r[regSP] -= 8
			r[i] = binary.LittleEndian.Uint64(m.memory[r[regSP] : r[regSP]+8])
		}

	case Call:
		r[regLR] = uint64(pc) + 1
		return m.resolveBranch(ins.Label, labels)

	case Jump:
		return m.resolveBranch(ins.Label, labels)

	case Jumpx:
		target := r[ins.Src]
		if target == sentinelPC {
			return sentinelPC, nil
		}
		return target, nil

	case SysCall:
		if err := m.syscall(ins.Value); err != nil {
			return 0, err
		}

	case Data, Label:
		// no runtime effect

	default:
		return 0, errors.Errorf("unimplemented instruction kind %v", ins.Kind)
	}

	return uint64(pc + 1), nil
}

// operand2 returns the right-hand operand for a binary ALU op: the
// immediate when WithValue is set, else Src2.
func (m *Machine) operand2(ins Instruction) uint64 {
	if ins.WithValue {
		return ins.Value
	}
	return m.registers[ins.Src2]
}

func containsReg(regs []int, i int) bool {
	for _, r := range regs {
		if r == i {
			return true
		}
	}
	return false
}

func (m *Machine) resolveBranch(label string, labels map[string]int) (uint64, error) {
	idx, ok := labels[label]
	if !ok {
		return 0, errors.Errorf("undefined label name '%s'", label)
	}
	return uint64(idx), nil
}

func (m *Machine) syscall(number uint64) error {
	switch number {
	case 0:
		return m.stdout.WriteByte(byte(m.registers[0]))
	default:
		return errors.Errorf("syscall %d not implemented", number)
	}
}

func (m *Machine) readMemory(addr uint64, dt DataType) (uint64, error) {
	width := uint64(dt.Bits() / 8)
	if addr > uint64(len(m.memory))-width {
		return 0, errOutOfBounds
	}
	buf := m.memory[addr : addr+width]

	switch dt {
	case Byte:
		return uint64(buf[0]), nil
	case Half:
		return uint64(binary.LittleEndian.Uint16(buf)), nil
	case Word:
		return uint64(binary.LittleEndian.Uint32(buf)), nil
	case Long:
		return binary.LittleEndian.Uint64(buf), nil
	default:
		return 0, errors.Errorf("invalid load width %v", dt)
	}
}

func (m *Machine) writeMemory(addr uint64, dt DataType, val uint64) error {
	width := uint64(dt.Bits() / 8)
	if addr > uint64(len(m.memory))-width {
		return errOutOfBounds
	}
	buf := m.memory[addr : addr+width]

	switch dt {
	case Byte:
		buf[0] = byte(val)
	case Half:
		binary.LittleEndian.PutUint16(buf, uint16(val&0xFFFF))
	case Word:
		binary.LittleEndian.PutUint32(buf, uint32(val&0xFFFFFFFF))
	case Long:
		binary.LittleEndian.PutUint64(buf, val)
	default:
		return errors.Errorf("invalid store width %v", dt)
	}
	return nil
}
