package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

/*
	The parser walks the flat token stream with a single non-consuming
	pattern-matching primitive: match() tries a sequence of patterns
	against the tokens starting at the current cursor, and either
	advances past all of them and records each matched token, or leaves
	the cursor untouched. Every statement form in the grammar is tried
	in a fixed order until one matches; the first to succeed wins.

	ALU mnemonics (mov, cmp, add, sub, mul, div, mod, lst, rst) share a
	single decode path with a fixed try-order:

		rD, rA, rB
		rD, rA, #imm
		rD, #imm
		rD, rA

	Decoding always starts by capturing "rD," as the destination
	register, then tries each remaining alternative against the tokens
	that follow. This is the same sequence the source grammar uses for
	every mnemonic in the group, cmp included — cmp just doesn't write
	its Dest back to the register file.
*/

// ParseError is a fatal assembler diagnostic; assembly is fatal-at-first-error.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return errors.Wrapf(errors.New(e.Msg), "parse error at line %d", e.Line).Error()
}

// pattern is either a required TokenKind or a required literal token text.
type pattern struct {
	kind    TokenKind
	byKind  bool
	literal string
}

func pk(k TokenKind) pattern       { return pattern{kind: k, byKind: true} }
func pl(s string) pattern          { return pattern{literal: s} }
func (p pattern) matches(t Token) bool {
	if p.byKind {
		return t.Kind == p.kind
	}
	return t.Text == p.literal
}

type parser struct {
	tokens  []Token
	pos     int
	matched []Token
}

func newParser(tokens []Token) *parser {
	return &parser{tokens: tokens}
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) cur() Token {
	if p.atEnd() {
		return Token{}
	}
	return p.tokens[p.pos]
}

// line reports the source line a diagnostic at the current cursor should be
// attributed to: the current token's line, or the last token's line if the
// parser has run past the end of input.
func (p *parser) line() int {
	if !p.atEnd() {
		return p.cur().Line
	}
	if len(p.tokens) > 0 {
		return p.tokens[len(p.tokens)-1].Line
	}
	return 1
}

// match attempts patterns starting at the current cursor. On success it
// advances the cursor past all of them and records the matched tokens in
// p.matched (indexable by pattern position). On failure the cursor is left
// untouched.
func (p *parser) match(patterns ...pattern) bool {
	if p.pos+len(patterns) > len(p.tokens) {
		return false
	}

	matched := make([]Token, len(patterns))
	for i, pat := range patterns {
		tok := p.tokens[p.pos+i]
		if !pat.matches(tok) {
			return false
		}
		matched[i] = tok
	}

	p.pos += len(patterns)
	p.matched = matched
	return true
}

func (p *parser) eatLiteral(s string) bool {
	if !p.atEnd() && p.cur().Text == s {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	if p.eatLiteral(s) {
		return nil
	}
	return &ParseError{Line: p.line(), Msg: fmt.Sprintf("expected '%s'", s)}
}

func (p *parser) errf(format string, args ...any) error {
	return &ParseError{Line: p.line(), Msg: fmt.Sprintf(format, args...)}
}

// Assemble lexes and parses source text into an ordered instruction list.
// Label definitions remain in the list as Label pseudo-instructions; branch
// targets are not resolved here (see ResolveLabels).
func Assemble(source string) ([]Instruction, error) {
	tokens, err := Lex(source)
	if err != nil {
		return nil, err
	}

	p := newParser(tokens)
	var program []Instruction

	for !p.atEnd() {
		line := p.cur().Line
		ins, err := p.statement()
		if err != nil {
			return nil, err
		}
		ins.LineNo = line
		program = append(program, ins)
	}

	return program, nil
}

func (p *parser) statement() (Instruction, error) {
	switch {
	case p.match(pk(Identifier), pl(":")):
		return Instruction{Kind: Label, Label: p.matched[0].Text}, nil

	case p.match(pl("."), pk(Identifier)):
		return p.dataDirective()

	case p.match(pl("call"), pk(Identifier)):
		return Instruction{Kind: Call, Label: p.matched[1].Text}, nil

	case p.match(pl("jmp"), pk(Identifier)):
		return Instruction{Kind: Jump, Label: p.matched[1].Text}, nil

	case p.match(pl("jx"), pk(Register)):
		return Instruction{Kind: Jumpx, Src: p.matched[1].regIndex}, nil

	case p.match(pl("sys"), pk(Value)):
		return Instruction{Kind: SysCall, Value: p.matched[1].value}, nil
	}

	if kind, ok := aluKinds[p.cur().Text]; ok {
		return p.aluInstruction(kind)
	}

	if text := p.cur().Text; len(text) >= 3 && (hasPrefix(text, "ldr") || hasPrefix(text, "str")) {
		return p.loadStore()
	}

	if p.cur().Text == "push" || p.cur().Text == "pop" {
		return p.pushPop()
	}

	return Instruction{}, p.errf("invalid syntax at '%s'", p.cur().Text)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (p *parser) dataDirective() (Instruction, error) {
	nameTok := p.matched[1]

	var dt DataType
	found := false
	for _, d := range dataTypeNames {
		if d.name == nameTok.Text {
			dt, found = d.dt, true
			break
		}
	}
	if !found {
		return Instruction{}, p.errf("unknown data type '%s'", nameTok.Text)
	}

	ins := Instruction{Kind: Data, DataType: dt}

	if dt == StringType {
		if p.cur().Kind != String {
			return Instruction{}, p.errf("expected string literal")
		}
		ins.Str = p.cur().Text
		p.pos++
		return ins, nil
	}

	if p.cur().Kind != Value {
		return Instruction{}, p.errf("expected digits")
	}
	val := p.cur().value
	p.pos++

	var max uint64
	switch dt {
	case Byte:
		max = 0xFF
	case Half:
		max = 0xFFFF
	case Word:
		max = 0xFFFFFFFF
	case Long:
		max = ^uint64(0)
	}
	if val > max {
		return Instruction{}, p.errf("value %d overflows data type '%s'", val, nameTok.Text)
	}

	ins.Value = val
	return ins, nil
}

func (p *parser) aluInstruction(kind Kind) (Instruction, error) {
	p.pos++ // consume the mnemonic

	if !p.match(pk(Register), pl(",")) {
		return Instruction{}, p.errf("expected 'rD,' after '%s'", kind)
	}
	dest := p.matched[0].regIndex

	ins := Instruction{Kind: kind, Dest: dest, Src: dest}

	switch {
	case p.match(pk(Register), pl(","), pk(Register)):
		ins.Src = p.matched[0].regIndex
		ins.Src2 = p.matched[2].regIndex

	case p.match(pk(Register), pl(","), pk(Value)):
		ins.Src = p.matched[0].regIndex
		ins.Value = p.matched[2].value
		ins.WithValue = true

	case p.match(pk(Value)):
		ins.Value = p.matched[0].value
		ins.WithValue = true

	case p.match(pk(Register)):
		ins.Src = p.matched[0].regIndex

	default:
		return Instruction{}, p.errf("invalid operands for '%s'", kind)
	}

	return ins, nil
}

func (p *parser) loadStore() (Instruction, error) {
	mnemonic := p.cur().Text

	var kind Kind
	if hasPrefix(mnemonic, "ldr") {
		kind = Load
	} else {
		kind = Store
	}

	dt := Long
	if len(mnemonic) > 3 {
		var ok bool
		dt, ok = widthSuffix[mnemonic[3]]
		if !ok {
			return Instruction{}, p.errf("'%s' is not a data type of ldr/str", mnemonic[3:])
		}
	}

	if !p.match(pk(Identifier), pk(Register), pl(","), pl("["), pk(Register)) {
		return Instruction{}, p.errf("invalid operands for '%s'", mnemonic)
	}

	valueReg := p.matched[1].regIndex
	base := p.matched[4].regIndex

	ins := Instruction{Kind: kind, DataType: dt, Base: base}
	if kind == Load {
		ins.Dest = valueReg
	} else {
		ins.Src = valueReg
	}

	if p.match(pl(","), pk(Value)) {
		ins.Offset = p.matched[1].value
	}

	if err := p.expect("]"); err != nil {
		return Instruction{}, err
	}

	if p.match(pl(","), pk(Value)) {
		ins.PostIncrement = p.matched[1].value
	}

	return ins, nil
}

func (p *parser) pushPop() (Instruction, error) {
	kind := Push
	if p.cur().Text == "pop" {
		kind = Pop
	}
	p.pos++

	if err := p.expect("{"); err != nil {
		return Instruction{}, err
	}

	seen := make(map[int]bool)
	var regs []int
	add := func(r int) {
		if !seen[r] {
			seen[r] = true
			regs = append(regs, r)
		}
	}

	for {
		if p.match(pk(Register), pl("-"), pk(Register)) {
			begin, end := p.matched[0].regIndex, p.matched[2].regIndex
			if begin > end {
				return Instruction{}, p.errf("invalid register range r%d-r%d", begin, end)
			}
			for r := begin; r <= end; r++ {
				add(r)
			}
		} else if p.cur().Kind == Register {
			add(p.cur().regIndex)
			p.pos++
		} else {
			return Instruction{}, p.errf("invalid syntax in register list")
		}

		if !p.eatLiteral(",") {
			break
		}
	}

	if err := p.expect("}"); err != nil {
		return Instruction{}, err
	}

	if len(regs) == 0 {
		return Instruction{}, p.errf("empty register list")
	}

	return Instruction{Kind: kind, Reglist: regs}, nil
}

// ResolveLabels builds a map from label name to the index of the
// instruction immediately following it, for O(1) branch resolution. The
// first occurrence of a duplicated label wins. It returns an error listing
// the first undefined label referenced by a Call or Jump, checked against
// the label set built here.
func ResolveLabels(program []Instruction) (map[string]int, error) {
	labels := make(map[string]int)

	for i, ins := range program {
		if ins.Kind != Label {
			continue
		}
		if _, exists := labels[ins.Label]; !exists {
			labels[ins.Label] = i + 1
		}
	}

	for _, ins := range program {
		if ins.Kind != Call && ins.Kind != Jump {
			continue
		}
		if _, ok := labels[ins.Label]; !ok {
			return nil, errors.Errorf("undefined label name '%s'", ins.Label)
		}
	}

	return labels, nil
}
