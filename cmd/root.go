package cmd

import (
	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the marksync command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"marksync",
		"Sync selected browser bookmarks to an HTTP endpoint",
	)
	root.Long = `marksync watches a browser's bookmark tree and, after a quiet period,
posts a snapshot of the selected bookmarks and folders to a configured endpoint.

Examples:
  marksync config set-endpoint https://example.com/hooks/bookmarks
  marksync select --recursive 1
  marksync daemon start`
	cli.SetVersionTemplate(root, version.GetInfo())

	root.AddCommand(
		NewDaemonCmd(),
		NewConfigCmd(),
		NewTreeCmd(),
		NewSelectCmd(),
		NewDeselectCmd(),
		NewSelectionCmd(),
		NewSendCmd(),
		NewWatchCmd(),
		NewLogsCmd(),
		cli.NewVersionCommand("marksync"),
		cli.NewDocsCommand(),
	)
	return root
}
