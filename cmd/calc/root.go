package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"calculator-api/internal/calculator"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var caseInsensitive, symbols bool

	cmd := &cobra.Command{
		Use:          "calc <operation> <a> <b>",
		Short:        "A command-line calculator",
		Long:         "Apply one of " + calculator.SupportedNames() + " to two numbers and print the result.",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			calc := calculator.New(
				calculator.WithCaseInsensitive(caseInsensitive),
				calculator.WithSymbols(symbols),
			)

			result, err := evaluate(calc, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(result, 'f', -1, 64))
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().BoolVarP(&caseInsensitive, "case-insensitive", "i", false, "match operation names regardless of case")
	cmd.Flags().BoolVarP(&symbols, "symbols", "s", false, "accept + - * / as operations")
	// Stop flag parsing at the operation so negative operands stay positional.
	cmd.Flags().SetInterspersed(false)

	return cmd
}

// evaluate validates the raw arguments the same way the HTTP API validates a
// JSON body: operands that do not parse as finite numbers are InvalidType and
// an overflowed result is an internal error.
func evaluate(calc *calculator.Calculator, operation, rawA, rawB string) (float64, error) {
	fields := map[string]any{
		"operation": operation,
		"a":         parseOperand(rawA),
		"b":         parseOperand(rawB),
	}
	req, err := calc.ParseRequest(fields)
	if err != nil {
		return 0, err
	}
	result, err := calc.Evaluate(req)
	if err != nil {
		return 0, err
	}
	if err := calculator.CheckFinite(req, result); err != nil {
		return 0, err
	}
	return result, nil
}

// parseOperand returns a float64 when s is numeric and s itself otherwise,
// leaving the rejection to the calculator.
func parseOperand(s string) any {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return v
}
