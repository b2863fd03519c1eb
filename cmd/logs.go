package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/pkg/paths"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		Long: `Prints the most recent daemon log file.

Examples:
  # Follow the daemon log
  marksync logs -f

  # Last 100 lines as JSON
  marksync logs --lines 100 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := findLatestLogFile(paths.LogDir())
			if err != nil {
				return err
			}
			asJSON := cli.GetOptions(cmd).JSONOutput
			out := cmd.OutOrStdout()

			offset, err := tailOffset(path, lines)
			if err != nil {
				return err
			}
			t, err := tail.TailFile(path, tail.Config{
				Follow:   follow,
				ReOpen:   follow,
				Location: &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
				Logger:   stdlog.New(io.Discard, "", 0),
			})
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}
			defer t.Cleanup()

			go func() {
				<-cmd.Context().Done()
				t.Stop()
			}()

			for line := range t.Lines {
				if line.Err != nil {
					continue
				}
				if asJSON {
					printLogJSON(out, line.Text)
				} else {
					printLogText(out, line.Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show (0 for the whole file)")
	return cmd
}

// findLatestLogFile returns the most recently modified non-empty log file
// in dir, or the most recent one when all are empty.
func findLatestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no daemon logs yet in %s", dir)
		}
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latest, latestNonEmpty os.FileInfo
	var latestPath, latestNonEmptyPath string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime()) {
			latest, latestPath = info, filepath.Join(dir, entry.Name())
		}
		if info.Size() > 0 && (latestNonEmpty == nil || info.ModTime().After(latestNonEmpty.ModTime())) {
			latestNonEmpty, latestNonEmptyPath = info, filepath.Join(dir, entry.Name())
		}
	}

	if latestNonEmpty != nil {
		return latestNonEmptyPath, nil
	}
	if latest == nil {
		return "", fmt.Errorf("no daemon logs yet in %s", dir)
	}
	return latestPath, nil
}

// tailOffset returns the byte offset of the n-th line from the end of path.
// n <= 0 means the start of the file.
func tailOffset(path string, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	end := len(data)
	if end > 0 && data[end-1] == '\n' {
		end--
	}
	for i := end - 1; i >= 0; i-- {
		if data[i] == '\n' {
			n--
			if n == 0 {
				return int64(i + 1), nil
			}
		}
	}
	return 0, nil
}

// printLogJSON prints a log line as JSON; text lines are wrapped.
func printLogJSON(w io.Writer, line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		entry = map[string]interface{}{"raw_line": line}
	}
	data, _ := json.Marshal(entry)
	fmt.Fprintln(w, string(data))
}

// printLogText pretty-prints JSON log lines and passes text lines through.
func printLogText(w io.Writer, line string) {
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		fmt.Fprintln(w, line)
		return
	}
	t := cli.DefaultTheme

	ts, _ := entry["time"].(string)
	level, _ := entry["level"].(string)
	msg, _ := entry["msg"].(string)
	component, _ := entry["component"].(string)

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		parsed, _ = time.Parse(time.RFC3339, ts)
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = t.Error
	case "warning":
		levelStyle = t.Warning
	case "info":
		levelStyle = t.Info
	default:
		levelStyle = t.Muted
	}

	var keys []string
	for k := range entry {
		switch k {
		case "time", "level", "msg", "component":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", t.Muted.Render(k), entry[k]))
	}

	fmt.Fprintf(w, "%s %s %s [%s] %s\n",
		parsed.Format("15:04:05"),
		levelStyle.Render(strings.ToUpper(level)),
		msg,
		t.Muted.Render(component),
		strings.Join(fields, " "),
	)
}
