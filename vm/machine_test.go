package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterR15ReadsLiveProgramCounter(t *testing.T) {
	program, err := Assemble(`
		mov r0, r15
		mov r1, r15
	`)
	require.NoError(t, err)

	m := NewMachine()
	_, err = m.Run(program)
	require.NoError(t, err)

	regs := m.Registers()
	assert.EqualValues(t, 0, regs[0])
	assert.EqualValues(t, 1, regs[1])
}

func TestStoreWordMasksTo32Bits(t *testing.T) {
	program, err := Assemble(`
		mov r0, #0x100
		mov r1, #0xFFFFFFFFFFFFFFFF
		strw r1, [r0, #0], #0
		ldrw r2, [r0, #0], #0
	`)
	require.NoError(t, err)

	m := NewMachine()
	_, err = m.Run(program)
	require.NoError(t, err)
	assert.EqualValues(t, 0xFFFFFFFF, m.Registers()[2])
}

func TestLoadZeroExtendsNarrowWidths(t *testing.T) {
	program, err := Assemble(`
		mov r0, #0x200
		mov r1, #0xFF
		strb r1, [r0, #0], #0
		ldrb r2, [r0, #0], #0
	`)
	require.NoError(t, err)

	m := NewMachine()
	_, err = m.Run(program)
	require.NoError(t, err)
	assert.EqualValues(t, 0xFF, m.Registers()[2])
}

func TestCmpComputesSignAndZeroFlags(t *testing.T) {
	program, err := Assemble(`
		mov r0, #5
		mov r1, #5
		cmp r0, r1
	`)
	require.NoError(t, err)

	m := NewMachine()
	_, err = m.Run(program)
	require.NoError(t, err)
	assert.True(t, m.flags.Zero)
	assert.False(t, m.flags.Negative)
}

func TestPushAdvancesSpByPopcount(t *testing.T) {
	program, err := Assemble(`
		mov r0, #1
		mov r1, #2
		mov r2, #3
		push { r0-r2 }
	`)
	require.NoError(t, err)

	m := NewMachine()
	before := m.stackBase
	_, err = m.Run(program)
	require.NoError(t, err)
	assert.Equal(t, before+3*8, m.Registers()[RegSP])
}

func TestPopUnderflowFaults(t *testing.T) {
	program, err := Assemble("pop { r0 }")
	require.NoError(t, err)

	m := NewMachine()
	outcome, err := m.Run(program)
	assert.Equal(t, OutcomeFault, outcome)
	require.Error(t, err)
}

func TestSyscallUnimplementedIsFatal(t *testing.T) {
	program, err := Assemble("sys #99")
	require.NoError(t, err)

	m := NewMachine()
	outcome, err := m.Run(program)
	assert.Equal(t, OutcomeFault, outcome)
	require.Error(t, err)
}

func TestRunSafelyRecoversFromPanic(t *testing.T) {
	// A register index outside [0,15] cannot come from the assembler, but
	// RunSafely must still convert the resulting out-of-range access into
	// a fault instead of crashing the host process.
	program := []Instruction{
		{Kind: Mov, Dest: 999, WithValue: true, Value: 1},
	}

	m := NewMachine()
	outcome, err := m.RunSafely(program)
	assert.Equal(t, OutcomeFault, outcome)
	require.Error(t, err)
}
