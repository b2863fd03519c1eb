package cli

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/syncer"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerHints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"incomplete", errors.ConfigIncomplete(false, 0), []string{"Sync is not configured", "marksync config set-endpoint"}},
		{"daemon", errors.DaemonUnavailable(stderrors.New("dial")), []string{"not running", "marksync daemon start"}},
		{"http", errors.HTTPStatus(502), []string{"Sync request failed: HTTP 502: Bad Gateway"}},
		{"network", errors.TransmissionFailed(stderrors.New("connection refused")), []string{"connection refused"}},
		{"node", errors.NodeNotFound("42"), []string{"Bookmark '42' not found", "marksync tree"}},
		{"plain", stderrors.New("boom"), []string{"Error: boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			assert.NotContains(t, buf.String(), "Error details")
		})
	}
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var buf bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &buf}
	h.Handle(errors.ConfigIncomplete(true, 0))
	assert.Contains(t, buf.String(), "Error details")
	assert.Contains(t, buf.String(), `"code": "CONFIG_INCOMPLETE"`)
	assert.Nil(t, h.Handle(nil))
}

func TestSendProgressPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewSendProgressTo(&buf, false)

	p.Begin()
	p.Success(&syncer.Outcome{Count: 1})
	p.Begin()
	p.Failure(errors.HTTPStatus(500))

	// Failures are left to the ErrorHandler.
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Sending bookmarks...", lines[0])
	assert.Contains(t, lines[1], "Sent 1 bookmark (")
	assert.Equal(t, "Sending bookmarks...", lines[2])
}

func newTestRoot() *cobra.Command {
	root := NewStandardCommand("marksync", "Sync bookmarks")
	sub := &cobra.Command{
		Use:   "send",
		Short: "Send now",
		Long:  "Send the selection now.\n\nExamples:\n# send\nmarksync send --json",
		Run:   func(*cobra.Command, []string) {},
	}
	sub.Flags().Bool("quiet", false, "No spinner")
	root.AddCommand(sub, &cobra.Command{Use: "hidden", Hidden: true, Run: func(*cobra.Command, []string) {}})
	root.AddCommand(NewDocsCommand())
	return root
}

func TestDescribe(t *testing.T) {
	doc := Describe(newTestRoot())
	assert.Equal(t, "marksync", doc.Name)

	var names []string
	for _, c := range doc.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"send", "docs"}, names)

	var flagNames []string
	for _, f := range doc.Flags {
		flagNames = append(flagNames, f.Name)
	}
	assert.ElementsMatch(t, []string{"verbose", "json", "config"}, flagNames)
}

func TestDocsCommandPrintsJSON(t *testing.T) {
	root := newTestRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"docs"})
	require.NoError(t, root.Execute())

	var doc CommandDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "marksync", doc.Path)
}

func TestRenderHelp(t *testing.T) {
	root := newTestRoot()
	send, _, err := root.Find([]string{"send"})
	require.NoError(t, err)

	var buf bytes.Buffer
	renderHelp(&buf, send)
	out := buf.String()
	assert.Contains(t, out, "MARKSYNC SEND")
	assert.Contains(t, out, "Send the selection now.")
	assert.Contains(t, out, "EXAMPLES")
	assert.Contains(t, out, "--quiet")
	assert.NotContains(t, out, "hidden")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "short", wrapText("short", 10))
	assert.Equal(t, "aaa bbb\nccc", wrapText("aaa bbb ccc", 7))
	assert.Equal(t, "a\nb", wrapText("a\nb", 10))
}

func TestSplitExamples(t *testing.T) {
	desc, ex := splitExamples("Do it.\nExamples:\nmarksync send")
	assert.Equal(t, "Do it.", desc)
	assert.Equal(t, "marksync send", ex)

	desc, ex = splitExamples("No examples")
	assert.Equal(t, "No examples", desc)
	assert.Empty(t, ex)
}

func TestUsageErrorsAreDistinct(t *testing.T) {
	err := ExactArgs(1)(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.True(t, isUsageError(err))
	assert.False(t, isUsageError(stderrors.New("x")))
	assert.Nil(t, UsageError(nil))
}
