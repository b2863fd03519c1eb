package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandDoc is the structured description of one command.
type CommandDoc struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Short    string       `json:"short,omitempty"`
	Long     string       `json:"long,omitempty"`
	Flags    []FlagDoc    `json:"flags,omitempty"`
	Commands []CommandDoc `json:"commands,omitempty"`
}

// FlagDoc describes one local flag.
type FlagDoc struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Usage     string `json:"usage,omitempty"`
}

// Describe builds the documentation tree rooted at cmd, skipping hidden
// commands and cobra's generated help/completion commands.
func Describe(cmd *cobra.Command) CommandDoc {
	doc := CommandDoc{
		Name:  cmd.Name(),
		Path:  cmd.CommandPath(),
		Short: cmd.Short,
		Long:  strings.TrimSpace(cmd.Long),
	}
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		doc.Flags = append(doc.Flags, FlagDoc{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Default:   f.DefValue,
			Usage:     f.Usage,
		})
	})
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() || sub.Name() == "completion" {
			continue
		}
		doc.Commands = append(doc.Commands, Describe(sub))
	}
	return doc
}

// NewDocsCommand creates a 'docs' command that prints the structured JSON
// documentation of the whole command tree.
func NewDocsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Print the structured JSON documentation for this tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(Describe(cmd.Root()))
		},
	}
}
