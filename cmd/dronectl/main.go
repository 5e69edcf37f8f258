// Command dronectl stops or starts the drone receiver stack on the remote
// AntSDR host. One action per invocation: "stop" force-kills every process
// matching the configured patterns and prints a report; "start" dispatches
// the init entry point detached and returns immediately.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"vawter.tech/stopper"

	"github.com/cemaxecuter/dronectl"
)

// stopGrace is how long an interrupted operation gets to unwind before
// its context is hard-cancelled.
const stopGrace = 2 * time.Second

type app struct {
	log zerolog.Logger

	cfgPath    string
	reportPath string
	debug      bool

	// newDialer builds the channel for a loaded config; tests stub it out
	newDialer func(cfg *dronectl.Config) dronectl.Dialer
}

func newApp() *app {
	return &app{
		log: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().
			Level(zerolog.WarnLevel),
		newDialer: func(cfg *dronectl.Config) dronectl.Dialer {
			return dronectl.NewSSHDialer(cfg.Host, cfg.User, cfg.Secret,
				dronectl.WithPort(cfg.Port))
		},
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dronectl <start|stop>",
		Short:         "Remote lifecycle control for the drone receiver stack",
		Version:       dronectl.Version,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if a.debug {
				a.log = a.log.Level(zerolog.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errors.New("an action of start or stop is required")
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to YAML config (DRONECTL_* env overrides)")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "enable debug output")

	start := &cobra.Command{
		Use:   "start",
		Short: "Launch the receiver init script, detached",
		Args:  cobra.NoArgs,
		RunE:  a.runStart,
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Force-kill every receiver process and report what happened",
		Args:  cobra.NoArgs,
		RunE:  a.runStop,
	}
	stop.Flags().StringVar(&a.reportPath, "report", "", "also write the stop report to this file")

	root.AddCommand(start, stop)
	return root
}

func (a *app) runStart(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := dronectl.LoadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	a.log.Debug().Str("host", cfg.Host).Str("entrypoint", cfg.Entrypoint).Msg("dispatching start")

	launcher := dronectl.NewLauncher(a.newDialer(cfg), dronectl.WithEntrypoint(cfg.Entrypoint))

	if err := a.runInterruptible(launcher.Start); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "start dispatched to %s\n", cfg.Host)
	return nil
}

func (a *app) runStop(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := dronectl.LoadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	a.log.Debug().Str("host", cfg.Host).Int("patterns", len(cfg.Patterns)).Msg("dispatching stop")

	reportPath := a.reportPath
	if reportPath == "" {
		reportPath = cfg.ReportPath
	}

	opts := []dronectl.ReaperOption{dronectl.WithRemoteDir(cfg.RemoteDir)}
	if reportPath != "" {
		opts = append(opts, dronectl.WithReportPath(reportPath))
	}
	reaper := dronectl.NewReaper(a.newDialer(cfg), opts...)

	var report *dronectl.StopReport
	err = a.runInterruptible(func(ctx context.Context) error {
		r, err := reaper.Stop(ctx, dronectl.PatternSet(cfg.Patterns))
		report = r
		return err
	})
	if err != nil {
		return err
	}

	if killErr := report.KillErr(); killErr != nil {
		a.log.Warn().Err(killErr).Msg("some termination signals were rejected")
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render())
	return nil
}

// runInterruptible runs fn under a stopper context so SIGINT/SIGTERM can
// cancel in-flight remote work after a short grace period. A partially
// processed stop is safe to interrupt: the next stop completes the rest.
func (a *app) runInterruptible(fn func(context.Context) error) error {
	sctx := stopper.WithContext(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	go func() {
		select {
		case <-sig:
			a.log.Warn().Msg("interrupted; aborting remote operation")
			sctx.Stop(stopGrace)
		case <-sctx.Stopping():
		}
	}()

	sctx.Go(func(sctx *stopper.Context) error {
		defer sctx.Stop(stopGrace)
		return fn(sctx)
	})

	return sctx.Wait()
}

func main() {
	a := newApp()
	if err := a.rootCmd().Execute(); err != nil {
		a.log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
