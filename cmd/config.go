package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/config"
	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/logging"
	"github.com/grovetools/marksync/pkg/paths"
	"github.com/grovetools/marksync/pkg/syncstate"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd returns the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit settings and the sync record",
		Long: `Settings (marksync.yml) control the daemon. The sync record (state.yml)
holds the endpoint URL, the optional shared secret and the selected bookmarks.

Examples:
  marksync config set-endpoint https://example.com/hooks/bookmarks
  echo "$TOKEN" | marksync config set-secret --stdin
  marksync config show --json`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigSetEndpointCmd())
	cmd.AddCommand(newConfigSetSecretCmd())
	cmd.AddCommand(newConfigClearSecretCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings and the sync record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			rec, err := a.records.Read(cmd.Context())
			if err != nil {
				return err
			}
			rec = rec.Redacted()

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"settings": a.settings,
					"record":   rec,
				})
			}

			settingsYAML, err := yaml.Marshal(a.settings)
			if err != nil {
				return err
			}
			recordYAML, err := yaml.Marshal(rec)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "--- # SETTINGS")
			fmt.Fprintln(out, string(settingsYAML))
			fmt.Fprintln(out, "--- # SYNC RECORD")
			fmt.Fprintf(out, "# Source: %s\n", a.records.Path())
			fmt.Fprint(out, string(recordYAML))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the paths marksync reads and writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settingsPath, err := cli.SettingsPath(cmd)
			if err != nil {
				if !errors.Is(err, errors.ErrCodeConfigNotFound) {
					return err
				}
				settingsPath = fmt.Sprintf("(none; searched %s for %s)", paths.ConfigDir(), strings.Join(config.ConfigFileNames, ", "))
			}
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settings: %s\n", settingsPath)
			fmt.Fprintf(out, "Record:   %s\n", a.records.Path())
			fmt.Fprintf(out, "Socket:   %s\n", paths.SocketPath())
			fmt.Fprintf(out, "PID file: %s\n", paths.PidFilePath())
			fmt.Fprintf(out, "Logs:     %s\n", paths.LogDir())
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of marksync.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	}
}

// pretty returns the user-facing output logger for cmd.
func pretty(cmd *cobra.Command) *logging.PrettyLogger {
	return logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
}

// updateRecord applies mutate to the current record and writes it back.
func updateRecord(cmd *cobra.Command, mutate func(*syncstate.Record)) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	rec, err := a.records.Read(cmd.Context())
	if err != nil {
		return err
	}
	mutate(&rec)
	return a.records.Write(cmd.Context(), rec)
}

func newConfigSetEndpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-endpoint <url>",
		Short: "Set the URL snapshots are posted to",
		Args:  cli.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := strings.TrimSpace(args[0])
			if err := config.ValidateEndpoint(endpoint); err != nil {
				return err
			}
			if err := updateRecord(cmd, func(r *syncstate.Record) { r.EndpointURL = endpoint }); err != nil {
				return err
			}
			pretty(cmd).Success(fmt.Sprintf("Endpoint set to %s", endpoint))
			return nil
		},
	}
}

func newConfigSetSecretCmd() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "set-secret [secret]",
		Short: "Set the shared secret appended to the endpoint URL",
		Long: `Sets the secret sent as the "password" query parameter. Without an argument
the secret is read from stdin: prompted without echo on a terminal, or read as
the first line with --stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			switch {
			case len(args) == 1:
				secret = args[0]
			case fromStdin:
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				secret = line
			default:
				fd := int(os.Stdin.Fd())
				if !term.IsTerminal(fd) {
					return cli.UsageError(fmt.Errorf("no secret given; pass it as an argument or use --stdin"))
				}
				fmt.Fprint(cmd.ErrOrStderr(), "Shared secret: ")
				raw, err := term.ReadPassword(fd)
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("failed to read secret: %w", err)
				}
				secret = strings.TrimSpace(string(raw))
			}
			if secret == "" {
				return errors.InvalidInput("secret must not be empty; use clear-secret to remove it")
			}

			if err := updateRecord(cmd, func(r *syncstate.Record) { r.SharedSecret = secret }); err != nil {
				return err
			}
			pretty(cmd).Success("Shared secret set")
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the secret from the first line of stdin")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newConfigClearSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-secret",
		Short: "Remove the shared secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := updateRecord(cmd, func(r *syncstate.Record) { r.SharedSecret = "" }); err != nil {
				return err
			}
			pretty(cmd).Success("Shared secret cleared")
			return nil
		},
	}
}
