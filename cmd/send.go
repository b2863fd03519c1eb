package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/internal/daemon/store"
	"github.com/grovetools/marksync/pkg/daemon"
	"github.com/grovetools/marksync/pkg/paths"
	"github.com/spf13/cobra"
)

// NewSendCmd returns the send command.
func NewSendCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the selected bookmarks now",
		Long: `Builds a snapshot of the selected bookmarks and posts it to the endpoint
immediately. The running daemon performs the send when it is reachable;
otherwise marksync sends directly.

Examples:
  marksync send
  marksync send --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			logger := cli.GetLogger(cmd)
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			client, err := daemon.New(paths.SocketPath(), a.localClient)
			if err != nil {
				return err
			}
			defer client.Close()
			logger.WithField("daemon", client.IsRunning()).Debug("Sending bookmarks")

			progress := cli.NewSendProgress(quiet || opts.JSONOutput)
			resp, err := client.Send(cmd.Context(), progress)
			if err != nil {
				return err
			}

			if opts.JSONOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return err
				}
			}
			return resp.Err()
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Disable the progress spinner")
	return cmd
}

// NewWatchCmd returns the watch command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream daemon activity until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := daemon.Connect(paths.SocketPath())
			if err != nil {
				return err
			}
			defer client.Close()

			updates, err := client.Stream(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			asJSON := cli.GetOptions(cmd).JSONOutput
			enc := json.NewEncoder(out)
			for u := range updates {
				if asJSON {
					if err := enc.Encode(u); err != nil {
						return err
					}
					continue
				}
				printUpdate(out, u, time.Now())
			}
			return nil
		},
	}
}

func printUpdate(w io.Writer, u daemon.Update, at time.Time) {
	t := cli.DefaultTheme
	ts := t.Muted.Render(at.Format("15:04:05"))

	switch u.Type {
	case store.UpdateTreeEvent:
		if u.Event != nil {
			fmt.Fprintf(w, "%s %s %s %s\n", ts, t.Info.Render("tree"), u.Event.Kind, u.Event.ID)
		}
	case store.UpdatePruned:
		fmt.Fprintf(w, "%s %s removed %s from the selection\n", ts, t.Warning.Render("prune"), u.ID)
	case store.UpdateRecordChange:
		fmt.Fprintf(w, "%s %s sync record changed\n", ts, t.Info.Render("record"))
	case store.UpdateSettings:
		fmt.Fprintf(w, "%s %s reloaded %s\n", ts, t.Info.Render("settings"), u.File)
	case store.UpdateOutcome:
		o := u.Outcome
		if o == nil {
			return
		}
		switch {
		case o.Skipped:
			fmt.Fprintf(w, "%s %s skipped (%s): not configured\n", ts, t.Muted.Render("sync"), u.Source)
		case o.Error != "":
			fmt.Fprintf(w, "%s %s failed (%s): %s\n", ts, t.Error.Render("sync"), u.Source, o.Error)
		default:
			fmt.Fprintf(w, "%s %s sent %d bookmarks (%s)\n", ts, t.Success.Render("sync"), o.Count, u.Source)
		}
	}
}
