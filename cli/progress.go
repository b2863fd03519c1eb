package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/marksync/internal/syncer"
	"github.com/mattn/go-isatty"
)

// SendProgress renders the lifecycle of an interactive send. On a terminal
// it shows a spinner between Begin and the outcome; otherwise it prints one
// line per transition. It satisfies syncer.Lifecycle.
type SendProgress struct {
	out         io.Writer
	interactive bool

	mu      sync.Mutex
	start   time.Time
	program *tea.Program
	done    chan struct{}
}

var _ syncer.Lifecycle = (*SendProgress)(nil)

// NewSendProgress writes to stderr, animating only when stderr is a
// terminal and quiet is false.
func NewSendProgress(quiet bool) *SendProgress {
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return NewSendProgressTo(os.Stderr, tty && !quiet)
}

// NewSendProgressTo writes to w.
func NewSendProgressTo(w io.Writer, interactive bool) *SendProgress {
	return &SendProgress{out: w, interactive: interactive}
}

type sendDoneMsg struct{ line string }

type sendModel struct {
	spinner spinner.Model
	done    bool
	final   string
}

func (m sendModel) Init() tea.Cmd { return m.spinner.Tick }

func (m sendModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sendDoneMsg:
		m.done = true
		m.final = msg.line
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m sendModel) View() string {
	if m.done {
		if m.final == "" {
			return ""
		}
		return m.final + "\n"
	}
	return m.spinner.View() + " Sending bookmarks...\n"
}

// Begin starts the spinner.
func (p *SendProgress) Begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()

	if !p.interactive {
		fmt.Fprintln(p.out, "Sending bookmarks...")
		return
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultTheme.Info

	p.program = tea.NewProgram(sendModel{spinner: s}, tea.WithOutput(p.out), tea.WithInput(nil))
	p.done = make(chan struct{})
	go func(prog *tea.Program, done chan struct{}) {
		defer close(done)
		if _, err := prog.Run(); err != nil {
			fmt.Fprintf(p.out, "progress display failed: %v\n", err)
		}
	}(p.program, p.done)
}

// Success reports a delivered snapshot.
func (p *SendProgress) Success(o *syncer.Outcome) {
	count := 0
	if o != nil {
		count = o.Count
	}
	noun := "bookmarks"
	if count == 1 {
		noun = "bookmark"
	}
	p.finish(fmt.Sprintf("%s Sent %d %s (%s)", DefaultTheme.Success.Render("✓"), count, noun, p.elapsed()))
}

// Failure clears the spinner. The error itself is reported by the command's
// ErrorHandler along with a hint.
func (p *SendProgress) Failure(err error) {
	p.finish("")
}

func (p *SendProgress) elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.start.IsZero() {
		return 0
	}
	return time.Since(p.start).Round(time.Millisecond)
}

func (p *SendProgress) finish(line string) {
	p.mu.Lock()
	prog, done := p.program, p.done
	p.program, p.done = nil, nil
	p.mu.Unlock()

	if prog == nil {
		if line != "" {
			fmt.Fprintln(p.out, line)
		}
		return
	}
	prog.Send(sendDoneMsg{line: line})
	<-done
}
