package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexRegistersAndAliases(t *testing.T) {
	tokens, err := Lex("r0 r15 fp ip sp lr pc")
	require.NoError(t, err)
	require.Len(t, tokens, 7)

	wantIdx := []int{0, 15, RegFP, RegIP, RegSP, RegLR, RegPC}
	for i, tok := range tokens {
		assert.Equal(t, Register, tok.Kind)
		assert.Equal(t, wantIdx[i], tok.regIndex)
	}
}

func TestLexRegisterOutOfRangeIsFatal(t *testing.T) {
	_, err := Lex("r16")
	require.Error(t, err)
}

func TestLexImmediates(t *testing.T) {
	tokens, err := Lex("#10 #0x1F #'A'")
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.EqualValues(t, 10, tokens[0].value)
	assert.EqualValues(t, 0x1F, tokens[1].value)
	assert.EqualValues(t, 'A', tokens[2].value)
}

func TestLexDecimalDigitsWithoutHexPrefixStayDecimal(t *testing.T) {
	// "1f" has no 0x prefix, so digit scanning stops at 'f' and leaves a
	// trailing identifier token, rather than reading it as hex.
	tokens, err := Lex("#1f")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.EqualValues(t, 1, tokens[0].value)
	assert.Equal(t, Identifier, tokens[1].Kind)
	assert.Equal(t, "f", tokens[1].Text)
}

func TestLexLineComment(t *testing.T) {
	tokens, err := Lex("mov r0, #1 @ trailing comment\nadd r0, r0, r0")
	require.NoError(t, err)

	var idents []string
	for _, tok := range tokens {
		if tok.Kind == Identifier {
			idents = append(idents, tok.Text)
		}
	}
	assert.Equal(t, []string{"mov", "add"}, idents)
}

func TestLexUnterminatedStringIsFatal(t *testing.T) {
	_, err := Lex(`"hello`)
	require.Error(t, err)
}

func TestLexString(t *testing.T) {
	tokens, err := Lex(`"hello world"`)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, String, tokens[0].Kind)
	assert.Equal(t, "hello world", tokens[0].Text)
}

func TestLexTracksLineNumbers(t *testing.T) {
	tokens, err := Lex("mov r0, #1\nadd r0, r0, r0\n\nsub r0, r0, r0")
	require.NoError(t, err)

	var lines []int
	for _, tok := range tokens {
		if tok.Kind == Identifier {
			lines = append(lines, tok.Line)
		}
	}
	assert.Equal(t, []int{1, 2, 4}, lines)
}

func TestCanonicalFormRoundTripsRegistersAndValues(t *testing.T) {
	tokens, err := Lex("r3 #42 #0x2A")
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	assert.Equal(t, "r3", canonicalForm(tokens[0]))
	assert.Equal(t, "#42", canonicalForm(tokens[1]))
	assert.Equal(t, "#0x2A", canonicalForm(tokens[2]))
}

func TestLexPunctuation(t *testing.T) {
	tokens, err := Lex("[r0, #0]")
	require.NoError(t, err)

	var puncts []string
	for _, tok := range tokens {
		if tok.Kind == Punctuation {
			puncts = append(puncts, tok.Text)
		}
	}
	assert.Equal(t, []string{"[", ",", "]"}, puncts)
}
