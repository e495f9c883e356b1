// Package terminal renders a conversation in the terminal and reads the
// user's keystrokes line by line.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/z-companion/backend/internal/companion"
	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

// Theme defines the colors of the conversation view.
type Theme struct {
	Primary   lipgloss.Color
	Assistant lipgloss.Color
	Dim       lipgloss.Color
	Alert     lipgloss.Color
}

// DefaultTheme is a calm blue/green palette.
var DefaultTheme = Theme{
	Primary:   lipgloss.Color("#5fafff"),
	Assistant: lipgloss.Color("#87d7af"),
	Dim:       lipgloss.Color("#6e7681"),
	Alert:     lipgloss.Color("#ff8787"),
}

type styles struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	status    lipgloss.Style
	alert     lipgloss.Style
	box       lipgloss.Style
}

type line struct {
	text string
	err  error
}

// Terminal writes styled output and reads lines of input. Writes are
// serialized because state changes arrive from the playback goroutine.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	lines  chan line
	styles styles
}

// New returns a terminal over in/out. Input is scanned in the background so
// a blocked read can be abandoned through its context.
func New(in io.Reader, out io.Writer, theme Theme) *Terminal {
	r := lipgloss.NewRenderer(out)
	t := &Terminal{
		out:   out,
		lines: make(chan line),
		styles: styles{
			title:     r.NewStyle().Bold(true).Foreground(theme.Primary),
			user:      r.NewStyle().Bold(true).Foreground(theme.Primary),
			assistant: r.NewStyle().Bold(true).Foreground(theme.Assistant),
			status:    r.NewStyle().Foreground(theme.Dim),
			alert:     r.NewStyle().Foreground(theme.Alert),
			box:       r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(theme.Primary).Padding(0, 1),
		},
	}
	go t.scan(in)
	return t
}

func (t *Terminal) scan(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		t.lines <- line{text: sc.Text()}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	// 输入结束后每次读取都返回同一个错误
	for {
		t.lines <- line{err: err}
	}
}

func (t *Terminal) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, s)
}

// ReadLine prints prompt and returns the next trimmed input line. io.EOF is
// returned once input is closed.
func (t *Terminal) ReadLine(ctx context.Context, prompt string) (string, error) {
	if prompt != "" {
		t.mu.Lock()
		fmt.Fprint(t.out, t.styles.status.Render(prompt)+" ")
		t.mu.Unlock()
	}
	select {
	case l := <-t.lines:
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Header shows who the user is talking to.
func (t *Terminal) Header(s therapist.Summary) {
	line := s.DisplayName
	if s.Credentials != "" {
		line += ", " + s.Credentials
	}
	body := t.styles.title.Render(line) + "\n" + t.styles.status.Render(s.Role.Label()+" companion")
	t.println(t.styles.box.Render(body))
}

// Info prints a dim line.
func (t *Terminal) Info(text string) {
	t.println(t.styles.status.Render(text))
}

// Message prints one transcript entry.
func (t *Terminal) Message(m chat.Message, assistantName string) {
	if m.Role == chat.RoleAssistant {
		t.println(t.styles.assistant.Render(assistantName+":") + " " + m.Content)
		return
	}
	t.println(t.styles.user.Render("You:") + " " + m.Content)
}

// Status prints the controller state.
func (t *Terminal) Status(s companion.State) {
	var text string
	switch s {
	case companion.StateRecording:
		text = "● recording, press Enter to stop"
	case companion.StateProcessing:
		text = "… thinking"
	case companion.StateSpeaking:
		text = "♪ speaking"
	default:
		return
	}
	t.println(t.styles.status.Render(text))
}

// Error prints the user-facing guidance for err.
func (t *Terminal) Error(err error) {
	t.println(t.styles.alert.Render(Describe(err)))
}

// Describe turns a controller or API error into guidance for the user.
func Describe(err error) string {
	var turnErr *companion.TurnError
	stage := companion.Stage("")
	if errors.As(err, &turnErr) {
		stage = turnErr.Stage
	}

	switch {
	case errors.Is(err, failure.ErrDuration):
		msg := err.Error()
		if i := strings.LastIndex(msg, ": "); i >= 0 {
			msg = msg[i+2:]
		}
		return "Recording too short, " + msg
	case errors.Is(err, failure.ErrPermission):
		return "Microphone unavailable. Check the recorder command and device permissions."
	case errors.Is(err, failure.ErrNotFound):
		return "Therapist not found. Check the therapist id."
	case stage == companion.StageTranscription:
		return "Could not transcribe your recording. Please try again."
	case stage == companion.StageCompletion:
		return "Could not get a response. Please try again."
	case errors.Is(err, failure.ErrValidation):
		return strings.TrimPrefix(err.Error(), failure.ErrValidation.Error()+": ")
	}
	return "Something went wrong: " + err.Error()
}

// ManualText implements companion.ManualEntry by asking the user to type
// what they said.
func (t *Terminal) ManualText(ctx context.Context, _ error) (string, bool) {
	t.println(t.styles.alert.Render("Transcription is unavailable right now."))
	text, err := t.ReadLine(ctx, "Type what you said (empty to cancel):")
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}
