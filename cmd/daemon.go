package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/config"
	"github.com/grovetools/marksync/internal/daemon/engine"
	"github.com/grovetools/marksync/internal/daemon/pidfile"
	"github.com/grovetools/marksync/internal/daemon/server"
	"github.com/grovetools/marksync/logging"
	"github.com/grovetools/marksync/pkg/daemon"
	"github.com/grovetools/marksync/pkg/paths"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the background sync daemon",
		Long: `The daemon watches the browser's bookmarks and sends the selected ones
to the configured endpoint once changes have been quiet for the configured window.

Examples:
  marksync daemon start
  marksync daemon status --json
  marksync daemon flush`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	cmd.AddCommand(newDaemonFlushCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("marksyncd")
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create marksync directories: %w", err)
			}

			pidPath := paths.PidFilePath()
			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			if sink, err := logging.AddFileSink(paths.DaemonLogPath(time.Now())); err != nil {
				logger.WithError(err).Warn("Daemon log file unavailable")
			} else {
				defer sink.Close()
			}

			src, err := a.source()
			if err != nil {
				return err
			}
			eng := engine.New(a.records, src, a.syncer(src), engine.Options{
				Window:     a.settings.Window.Duration,
				SourceName: a.settings.Source.Kind,
			}, logging.NewLogger("engine"))

			srv := server.New(logging.NewLogger("server"))
			srv.SetEngine(eng)
			srv.SetSettings(a.settings)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if path, err := cli.SettingsPath(cmd); err == nil {
				watcher, err := daemon.NewSettingsWatcher(path, 250*time.Millisecond, func(reloaded *config.Settings) {
					applySettings(logger, a.settings, reloaded)
					srv.SetSettings(reloaded)
					eng.Activity().BroadcastSettingsReload(path)
				})
				if err != nil {
					logger.WithError(err).Warn("Settings watcher unavailable")
				} else {
					defer watcher.Close()
					go watcher.Start(ctx)
				}
			}

			engineErr := make(chan error, 1)
			go func() { engineErr <- eng.Start(ctx) }()

			serverErr := make(chan error, 1)
			go func() { serverErr <- srv.ListenAndServe(paths.SocketPath()) }()

			logger.WithFields(logrus.Fields{
				"pid":    os.Getpid(),
				"source": a.settings.Source.Kind,
				"window": a.settings.Window.String(),
			}).Info("Starting daemon")

			var runErr error
			select {
			case <-ctx.Done():
				logger.Info("Received stop signal")
			case err := <-engineErr:
				runErr = fmt.Errorf("engine stopped: %w", err)
			case err := <-serverErr:
				if err != nil {
					runErr = fmt.Errorf("server error: %w", err)
				}
			}
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Server shutdown error: %v", err)
			}
			eng.Stop()
			return runErr
		},
	}
}

// applySettings applies the live-reloadable part of reloaded (the log level)
// and warns about keys that need a restart.
func applySettings(logger *logrus.Entry, running, reloaded *config.Settings) {
	var logCfg logging.Config
	if err := reloaded.UnmarshalSection("logging", &logCfg); err == nil && logCfg.Level != "" {
		if level, err := logrus.ParseLevel(logCfg.Level); err == nil {
			logging.SetLevel(level)
		}
	}
	if keys := daemon.RestartRequired(running, reloaded); len(keys) > 0 {
		logger.Warnf("Restart the daemon to apply changes to: %s", strings.Join(keys, ", "))
	}
}

func newDaemonStopCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()
			running, _, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				pretty(cmd).Info("Daemon is not running")
				return nil
			}

			pid, err := pidfile.Terminate(pidPath, timeout)
			if err != nil {
				return err
			}
			pretty(cmd).Success(fmt.Sprintf("Stopped daemon (PID %d)", pid))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and coalescer status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running {
				if cli.GetOptions(cmd).JSONOutput {
					return json.NewEncoder(out).Encode(map[string]interface{}{"running": false})
				}
				fmt.Fprintln(out, "Stopped")
				return nil
			}

			client, err := daemon.Connect(paths.SocketPath())
			if err != nil {
				return err
			}
			defer client.Close()
			st, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Running bool `json:"running"`
					PID     int  `json:"pid"`
					*daemon.Status
				}{true, pid, st})
			}
			printStatus(out, pid, st)
			return nil
		},
	}
}

func printStatus(w io.Writer, pid int, st *daemon.Status) {
	t := cli.DefaultTheme
	fmt.Fprintf(w, "%s (PID %d)\n", t.Success.Render("Running"), pid)
	fmt.Fprintf(w, "  Socket:   %s\n", paths.SocketPath())
	fmt.Fprintf(w, "  Source:   %s\n", st.Source)
	fmt.Fprintf(w, "  Window:   %s\n", st.Window)
	state := st.State
	if st.Deadline != nil {
		state += fmt.Sprintf(", fires in %s", time.Until(*st.Deadline).Round(time.Second))
	}
	if st.Firing {
		state += ", sending"
	}
	fmt.Fprintf(w, "  State:    %s\n", state)
	fmt.Fprintf(w, "  Events:   %d (pruned %d, fired %d)\n", st.Events, st.Pruned, st.Fires)
	if o := st.LastOutcome; o != nil {
		result := t.Success.Render(fmt.Sprintf("sent %d", o.Count))
		switch {
		case o.Skipped:
			result = t.Muted.Render("skipped")
		case o.Error != "":
			result = t.Error.Render(o.Error)
		}
		fmt.Fprintf(w, "  Last:     %s at %s\n", result, o.FinishedAt.Local().Format("15:04:05"))
	}
}

func newDaemonFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Send a pending coalesced change now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemon.Connect(paths.SocketPath())
			if err != nil {
				return err
			}
			defer client.Close()
			flushed, err := client.Flush(cmd.Context())
			if err != nil {
				return err
			}
			if flushed {
				pretty(cmd).Success("Flushed pending sync")
			} else {
				pretty(cmd).Info("Nothing pending")
			}
			return nil
		},
	}
}
