package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/convert"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/storage/backends"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var (
		listModels bool
		listArgs   string
		logLevel   string
	)
	factories := backends.Default()

	cmd := &cobra.Command{
		Use:           "toolbox-convert [flags] <from-backend> [key=value ...] <to-backend> [key=value ...]",
		Short:         "Export every project from one storage backend to another",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Setup(logLevel, "text")
			out := cmd.OutOrStdout()
			if listModels {
				convert.ListModels(out, factories)
				return nil
			}
			if listArgs != "" {
				return convert.ListArgs(out, factories, listArgs)
			}
			plan, err := convert.ParseArgs(factories, args)
			if err != nil {
				return err
			}
			n, err := convert.Run(cmd.Context(), factories, plan)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "exported %d projects from %s to %s\n", n, plan.From.Backend, plan.To.Backend)
			return nil
		},
	}
	// Backend options look like flags (-directory=x), so stop flag parsing
	// at the first backend name.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVarP(&listModels, "list-models", "l", false, "list available backends")
	cmd.Flags().StringVarP(&listArgs, "list-args", "a", "", "list the options of a backend")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, convert.ErrUsage) {
			fmt.Fprint(os.Stderr, cmd.UsageString())
		}
		stop()
		os.Exit(apperrors.ExitCode(err))
	}
}
