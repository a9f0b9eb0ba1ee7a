// Package cli implements the golem command-line interface.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hallgrim/golem/internal/actuator"
	"github.com/hallgrim/golem/internal/agent"
	"github.com/hallgrim/golem/internal/config"
	"github.com/hallgrim/golem/internal/notify"
	"github.com/hallgrim/golem/internal/planner"
)

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the engine",
		Long: `Start the engine: connect to the actuator bridge and the planning
service, then read utterances from stdin (one per line) until EOF or
an interrupt. A line of the form "/role <name>" queues a role switch
that the next action step applies.

Example:
  golem run
  GOLEM_ACTUATOR_ENDPOINT=ws://host:3001/actuator golem run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := slog.Default()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Info("shutting down")
				cancel()
			}()

			client, err := actuator.DialWS(ctx, cfg.Actuator.Endpoint)
			if err != nil {
				return fmt.Errorf("connect actuator: %w", err)
			}

			svc := planner.NewHTTPService(cfg.Planner.Endpoint)
			notifier := notify.Func(func(text string) {
				fmt.Println(text)
			})

			a, err := agent.New(cfg, client, svc, notifier, nil, logger)
			if err != nil {
				client.Close()
				return fmt.Errorf("assemble agent: %w", err)
			}
			defer a.Close()

			if err := a.Start(ctx); err != nil {
				return fmt.Errorf("start agent: %w", err)
			}

			go func() {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					line := scanner.Text()
					if role, ok := strings.CutPrefix(line, "/role "); ok {
						a.RequestRole(role)
						continue
					}
					a.HandleUtterance("stdin", line)
				}
				cancel()
			}()

			<-ctx.Done()
			a.Wait()
			return nil
		},
	}
}
