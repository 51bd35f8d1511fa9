package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/config"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/engine"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/logging"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/version"
)

// exitError carries a process exit code out of a command. A nil err means
// the command already reported everything it had to say.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(defaultAdapterFactory)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return engine.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return engine.ExitAborted
}

func newRootCmd(newAdapter adapterFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "sweep",
		Short:         "cloudsweep: policy-driven cloud resource audit and cleanup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			logger := logging.New(cmd.ErrOrStderr(), v.GetString("log_level"), verbose)
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
	}
	root.PersistentFlags().String("config", "", "Config file (yaml, json or toml)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(newAuditCmd(newAdapter))
	root.AddCommand(newRulesCmd())
	root.AddCommand(newDoctorCmd(newAdapter))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short, _ := cmd.Flags().GetBool("short"); short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return
			}
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
	cmd.Flags().Bool("short", false, "Print only the version")
	return cmd
}

// isTerminal reports whether f is attached to a character device.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
