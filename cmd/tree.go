package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	stderrors "errors"

	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/selection"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/spf13/cobra"
)

// NewTreeCmd returns the tree command.
func NewTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the bookmark tree with selection markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			src, err := a.source()
			if err != nil {
				return err
			}
			root, err := src.GetTree(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(root)
			}

			selected, err := selection.NewEditor(a.records).Current(cmd.Context())
			if err != nil {
				return err
			}
			for _, child := range root.Children {
				printNode(out, child, selected, 0)
			}
			return nil
		},
	}
}

func printNode(w io.Writer, n *bookmarks.Node, selected *selection.Set, depth int) {
	t := cli.DefaultTheme
	mark := "[ ]"
	if selected.Has(n.ID) {
		mark = t.Success.Render("[x]")
	}
	indent := strings.Repeat("  ", depth)
	id := t.Muted.Render(n.ID)
	if n.IsFolder() {
		fmt.Fprintf(w, "%s%s %s %s\n", indent, mark, t.Bold.Render(n.Title+"/"), id)
	} else {
		fmt.Fprintf(w, "%s%s %s %s %s\n", indent, mark, n.Title, t.Muted.Render(n.URL), id)
	}
	for _, c := range n.Children {
		printNode(w, c, selected, depth+1)
	}
}

// findNode resolves id against the full tree so folders come with children.
func findNode(ctx context.Context, tree bookmarks.Tree, id string) (*bookmarks.Node, error) {
	root, err := tree.GetTree(ctx)
	if err != nil {
		return nil, err
	}
	n := root.Find(id)
	if n == nil || id == bookmarks.RootID {
		return nil, errors.NodeNotFound(id)
	}
	return n, nil
}

func newSelectionEditCmd(use, short string, selecting bool) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   use + " <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			src, err := a.source()
			if err != nil {
				return err
			}
			editor := selection.NewEditor(a.records)

			for _, id := range args {
				n, err := findNode(ctx, src, id)
				if err != nil {
					// Stale identifiers can still be deselected.
					if !selecting && errors.Is(err, errors.ErrCodeNodeNotFound) {
						if err := editor.Remove(ctx, id); err != nil {
							return err
						}
						continue
					}
					return err
				}

				switch {
				case recursive:
					err = editor.Toggle(ctx, n, selecting)
				case selecting:
					err = editor.Add(ctx, id)
				default:
					err = editor.Remove(ctx, id)
				}
				if err != nil {
					return err
				}
			}

			current, err := editor.Current(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bookmarks selected\n", current.Len())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Apply to folders and everything inside them")
	return cmd
}

// NewSelectCmd returns the select command.
func NewSelectCmd() *cobra.Command {
	return newSelectionEditCmd("select", "Add bookmarks or folders to the sync selection", true)
}

// NewDeselectCmd returns the deselect command.
func NewDeselectCmd() *cobra.Command {
	return newSelectionEditCmd("deselect", "Remove bookmarks or folders from the sync selection", false)
}

type selectionEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Folder  bool   `json:"folder"`
	Missing bool   `json:"missing,omitempty"`
}

// NewSelectionCmd returns the selection command.
func NewSelectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selection",
		Short: "List the selected bookmarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			src, err := a.source()
			if err != nil {
				return err
			}
			current, err := selection.NewEditor(a.records).Current(ctx)
			if err != nil {
				return err
			}

			entries := make([]selectionEntry, 0, current.Len())
			for _, id := range current.IDs() {
				n, err := src.Get(ctx, id)
				switch {
				case stderrors.Is(err, bookmarks.ErrNotFound):
					entries = append(entries, selectionEntry{ID: id, Missing: true})
				case err != nil:
					return err
				default:
					entries = append(entries, selectionEntry{ID: id, Title: n.Title, URL: n.URL, Folder: n.IsFolder()})
				}
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			t := cli.DefaultTheme
			for _, e := range entries {
				switch {
				case e.Missing:
					fmt.Fprintf(out, "%s %s\n", e.ID, t.Warning.Render("(missing)"))
				case e.Folder:
					fmt.Fprintf(out, "%s %s\n", e.ID, t.Bold.Render(e.Title+"/"))
				default:
					fmt.Fprintf(out, "%s %s %s\n", e.ID, e.Title, t.Muted.Render(e.URL))
				}
			}
			return nil
		},
	}
}
