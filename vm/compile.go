package vm

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// AssembleFile reads path and assembles it, mirroring the source-from-file
// vs. source-from-buffer split the reference assembler uses: file handling
// stays a thin wrapper around Assemble so callers that already hold source
// text in memory (tests, REPL-style tools) never need to touch the
// filesystem.
func AssembleFile(path string) ([]Instruction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "metrovm: cannot open file '%s'", path)
	}
	return Assemble(string(data))
}

// Listing renders a decoded program as a text listing, one instruction
// per line prefixed with its originating source line, in the canonical form
// Instruction.String produces. Used by the CLI's "asm" subcommand to show
// what a source file decoded to.
func Listing(program []Instruction) string {
	var b strings.Builder
	for _, ins := range program {
		fmt.Fprintf(&b, "%4d  ", ins.LineNo)
		if ins.Kind != Label {
			b.WriteString("    ")
		}
		b.WriteString(ins.String())
		b.WriteByte('\n')
	}
	return b.String()
}
