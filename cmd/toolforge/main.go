// Command toolforge creates, tests and serves Starlark tools for LLM agents.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// errReportFailed is returned when a test report is unsuccessful. The report
// itself has already been printed.
var errReportFailed = errors.New("tool test failed")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root, c := newRootCmd(stdout, stderr)
	defer func() {
		if err := c.close(); err != nil {
			fmt.Fprintf(stderr, "Error: close: %v\n", err)
		}
	}()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errReportFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *cli) {
	c := &cli{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "toolforge",
		Short:         "toolforge - build and test Starlark tools for LLM agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(
		c.createCmd(),
		c.testCmd(),
		c.listCmd(),
		c.getCmd(),
		c.deleteCmd(),
		c.ideasCmd(),
		c.searchCmd(),
		c.serveCmd(),
	)
	return root, c
}
