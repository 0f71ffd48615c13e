package vm

/*
	This file holds the lookup tables the parser consults when deciding
	what an ALU mnemonic, a data-directive name, or an ldr/str width suffix
	decodes to. The other mnemonics (call, jmp, jx, sys, ldr, str, push,
	pop) are matched as literals in assembler.go, and Kind.String in
	instruction.go holds the spellings used when printing instructions.

	aluKinds covers the nine mnemonics that share the parser's common
	"rD, rA, rB / rD, rA, #imm / rD, #imm / rD, rA" decode path.
*/

var aluKinds = map[string]Kind{
	"mov": Mov,
	"cmp": Cmp,
	"add": Add,
	"sub": Sub,
	"mul": Mul,
	"div": Div,
	"mod": Mod,
	"lst": Lst,
	"rst": Rst,
}

var dataTypeNames = []struct {
	name string
	dt   DataType
}{
	{"byte", Byte},
	{"half", Half},
	{"word", Word},
	{"long", Long},
	{"string", StringType},
}

// widthSuffix maps the optional fourth character of ldr/str mnemonics to a
// DataType: u -> 64-bit, w -> 32-bit, h -> 16-bit, b -> 8-bit. Absent suffix
// implies Long.
var widthSuffix = map[byte]DataType{
	'u': Long,
	'w': Word,
	'h': Half,
	'b': Byte,
}
