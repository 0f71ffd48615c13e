// Command metrovm assembles and runs Metro VM assembly source files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metrovm/metrovm/internal/report"
	"github.com/metrovm/metrovm/vm"
)

var traceFlag bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "metrovm",
		Short:        "Assemble and run Metro VM programs",
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runFile(args[0])
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Assemble and execute a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0])
		},
	}
	runCmd.Flags().BoolVar(&traceFlag, "trace", false, "print each instruction as it executes")

	asmCmd := &cobra.Command{
		Use:   "asm <file>",
		Short: "Assemble a source file and print the decoded instruction listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return asmFile(args[0])
		},
	}

	root.AddCommand(runCmd, asmCmd)
	root.PersistentFlags().BoolVar(&traceFlag, "trace", false, "print each instruction as it executes")

	return root
}

func runFile(path string) error {
	program, err := vm.AssembleFile(path)
	if err != nil {
		report.Fatalf(os.Stderr, "%s", err)
		return err
	}

	m := vm.NewMachine()
	if traceFlag {
		m.Trace = func(pc int, ins vm.Instruction) {
			fmt.Fprintf(os.Stdout, "%04d  %s\n", pc, ins)
		}
	}

	outcome, runErr := vm.RunFast(m, program)

	report.DumpRegisters(os.Stdout, m)
	report.DumpStack(os.Stdout, m, 10)

	if outcome == vm.OutcomeFault {
		report.Fatalf(os.Stderr, "%s", runErr)
		return runErr
	}

	return nil
}

func asmFile(path string) error {
	program, err := vm.AssembleFile(path)
	if err != nil {
		report.Fatalf(os.Stderr, "%s", err)
		return err
	}

	fmt.Print(vm.Listing(program))
	return nil
}
