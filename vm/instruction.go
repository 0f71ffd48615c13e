package vm

import "fmt"

// Kind identifies the operation an Instruction performs. The set and
// ordering mirrors the mnemonic table in the language reference.
type Kind int

const (
	Mov Kind = iota
	Cmp
	Add
	Sub
	Mul
	Div
	Mod
	Lst
	Rst
	Load
	Store
	Push
	Pop
	Call
	Jump
	Jumpx
	SysCall
	Data
	Label
)

func (k Kind) String() string {
	switch k {
	case Mov:
		return "mov"
	case Cmp:
		return "cmp"
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Mod:
		return "mod"
	case Lst:
		return "lst"
	case Rst:
		return "rst"
	case Load:
		return "ldr"
	case Store:
		return "str"
	case Push:
		return "push"
	case Pop:
		return "pop"
	case Call:
		return "call"
	case Jump:
		return "jmp"
	case Jumpx:
		return "jx"
	case SysCall:
		return "sys"
	case Data:
		return "data"
	case Label:
		return "label"
	default:
		return "?unknown?"
	}
}

// DataType selects the width a Load/Store instruction operates on, or marks
// a Data directive as a string literal.
type DataType int

const (
	Byte DataType = iota
	Half
	Word
	Long
	StringType
)

func (d DataType) String() string {
	switch d {
	case Byte:
		return "b"
	case Half:
		return "h"
	case Word:
		return "w"
	case Long:
		return "u"
	case StringType:
		return "string"
	default:
		return "?unknown?"
	}
}

// Bits returns the width in bits of a numeric DataType. Only meaningful for
// Byte/Half/Word/Long.
func (d DataType) Bits() int {
	switch d {
	case Byte:
		return 8
	case Half:
		return 16
	case Word:
		return 32
	case Long:
		return 64
	default:
		return 0
	}
}

// Instruction is a single decoded operation produced by Assemble. Go has no
// tagged unions, so this approximates one: a flat struct keyed on Kind, with
// named operand fields scoped to the kinds that use them (rather than the
// reused rd/ra/rb/with_value fields of the reference encoding).
type Instruction struct {
	Kind Kind

	// ALU (Add,Sub,Mul,Div,Mod,Lst,Rst): Dest = Src op (WithValue ? Value : Src2)
	// Mov: Dest = (WithValue ? Value : Src).
	// Cmp writes no register; it compares Dest against (WithValue ? Value : Src).
	Dest, Src, Src2 int
	WithValue       bool
	Value           uint64

	// Load: Dest <- width(DataType) at [Base + Offset], then Base += PostIncrement.
	// Store: width(DataType) at [Base + Offset] <- Src, then Base += PostIncrement.
	Base          int
	Offset        uint64
	PostIncrement uint64
	DataType      DataType

	// Call/Jump/Label carry a symbol name; Label also defines it.
	Label string

	// Push/Pop: ordered register indices, expanded from a reglist.
	Reglist []int

	// Data: literal payload. Str is used when DataType == StringType,
	// Value otherwise.
	Str string

	// LineNo is the 1-based source line this instruction was parsed
	// from, used only for diagnostics.
	LineNo int
}

// String renders an Instruction as one line of a listing, in canonical form
// (not necessarily byte-identical to how it was originally written). Load,
// Store and Data use a dotted width form ("ldr.b", "data.w") that Assemble
// does not accept as input.
func (ins Instruction) String() string {
	switch ins.Kind {
	case Label:
		return ins.Label + ":"
	case Data:
		if ins.DataType == StringType {
			return fmt.Sprintf("data.string %q", ins.Str)
		}
		return fmt.Sprintf("data.%s #%d", ins.DataType, ins.Value)
	case Mov:
		if ins.WithValue {
			return fmt.Sprintf("mov r%d, #%d", ins.Dest, ins.Value)
		}
		return fmt.Sprintf("mov r%d, r%d", ins.Dest, ins.Src)
	case Cmp:
		if ins.WithValue {
			return fmt.Sprintf("cmp r%d, #%d", ins.Dest, ins.Value)
		}
		return fmt.Sprintf("cmp r%d, r%d", ins.Dest, ins.Src)
	case Add, Sub, Mul, Div, Mod, Lst, Rst:
		if ins.WithValue {
			return fmt.Sprintf("%s r%d, r%d, #%d", ins.Kind, ins.Dest, ins.Src, ins.Value)
		}
		return fmt.Sprintf("%s r%d, r%d, r%d", ins.Kind, ins.Dest, ins.Src, ins.Src2)
	case Load:
		return fmt.Sprintf("ldr.%s r%d, [r%d, #%d], #%d", ins.DataType, ins.Dest, ins.Base, ins.Offset, ins.PostIncrement)
	case Store:
		return fmt.Sprintf("str.%s r%d, [r%d, #%d], #%d", ins.DataType, ins.Src, ins.Base, ins.Offset, ins.PostIncrement)
	case Push:
		return "push " + reglistString(ins.Reglist)
	case Pop:
		return "pop " + reglistString(ins.Reglist)
	case Call:
		return "call " + ins.Label
	case Jump:
		return "jmp " + ins.Label
	case Jumpx:
		return fmt.Sprintf("jx r%d", ins.Src)
	case SysCall:
		return fmt.Sprintf("sys #%d", ins.Value)
	default:
		return "?unknown?"
	}
}

func reglistString(regs []int) string {
	if len(regs) == 0 {
		return "{}"
	}
	s := fmt.Sprintf("{r%d", regs[0])
	for i := 1; i < len(regs); i++ {
		s += fmt.Sprintf(", r%d", regs[i])
	}
	return s + "}"
}
