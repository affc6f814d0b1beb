package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/newshub/internal/pipeline"
	"github.com/deusflow/newshub/internal/scheduler"
)

const promptTimeout = 5 * time.Second

func newRunCommand() *cobra.Command {
	var (
		selection string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Fetch every configured feed, rewrite and publish new items, then trim the breaking-news window.
Without --category or --yes the command asks for a category and falls back to all after a few seconds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()

			if !cmd.Flags().Changed("category") && !yes {
				selection = readSelection(ctx, os.Stdin, cmd.OutOrStdout(), promptTimeout)
			}

			p, err := a.Pipeline(ctx)
			if err != nil {
				return err
			}
			_, err = p.Run(ctx, selection)
			if pipeline.IsCancelled(err) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&selection, "category", "c", "", `categories to generate, comma separated ("all" or empty for everything)`)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "don't prompt for a category")
	return cmd
}

// readSelection asks for a category and returns "" when nothing is typed
// before the timeout.
func readSelection(ctx context.Context, in io.Reader, out io.Writer, timeout time.Duration) string {
	fmt.Fprint(out, "Enter category to generate (or leave empty for All): ")

	// On timeout the reader stays blocked on stdin until the process exits.
	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(in).ReadString('\n')
		answer <- strings.TrimSpace(line)
	}()

	select {
	case s := <-answer:
		return s
	case <-time.After(timeout):
		fmt.Fprintln(out, "\nNo input, generating all categories.")
		return ""
	case <-ctx.Done():
		return ""
	}
}

func newScheduleCommand() *cobra.Command {
	var (
		every     time.Duration
		spec      string
		now       bool
		selection string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a schedule and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()

			p, err := a.Pipeline(ctx)
			if err != nil {
				return err
			}
			if spec == "" {
				spec = scheduler.Every(every)
			}
			srv := a.Server(ctx)

			return serveAlongside(ctx, func(ctx context.Context) error {
				s, err := scheduler.New(ctx, spec, func(ctx context.Context) error {
					_, err := p.Run(ctx, selection)
					return err
				}, a.Log())
				if err != nil {
					return err
				}
				return s.Run(ctx, now)
			}, srv.Run)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 6*time.Hour, "interval between runs")
	cmd.Flags().StringVar(&spec, "cron", "", "cron expression, overrides --every")
	cmd.Flags().BoolVar(&now, "now", false, "start a run immediately")
	cmd.Flags().StringVarP(&selection, "category", "c", "", "categories to generate")
	return cmd
}

// serveAlongside runs work while serve keeps the HTTP API up. If the server
// fails, work's context is cancelled and the server error is returned.
func serveAlongside(ctx context.Context, work, serve func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	go func() {
		err := serve(ctx)
		if err != nil {
			cancel()
		}
		srvErr <- err
	}()

	workErr := work(ctx)
	cancel()
	if err := <-srvErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return workErr
}
