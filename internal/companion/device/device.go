// Package device runs the local microphone and voice through external
// commands such as ffmpeg and espeak.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/companion"
	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

const (
	outputPlaceholder = "{output}"
	textPlaceholder   = "{text}"

	stopGrace = 5 * time.Second
)

// SplitCommand splits a command template on whitespace, keeping single- or
// double-quoted sections together.
func SplitCommand(template string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inToken bool
	)

	for _, r := range template {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n':
			if inToken {
				args = append(args, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", template)
	}
	if inToken {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

func substitute(args []string, placeholder, value string) ([]string, bool) {
	out := make([]string, len(args))
	found := false
	for i, arg := range args {
		if strings.Contains(arg, placeholder) {
			found = true
		}
		out[i] = strings.ReplaceAll(arg, placeholder, value)
	}
	return out, found
}

// Recorder captures audio by running a command that writes to {output}
// until it is interrupted.
type Recorder struct {
	args []string
	ext  string
}

// NewRecorder parses the recorder template. ext names the container the
// command produces (webm, ogg, wav...).
func NewRecorder(template, ext string) (*Recorder, error) {
	args, err := SplitCommand(template)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	if _, found := substitute(args, outputPlaceholder, ""); !found {
		return nil, fmt.Errorf("recorder: command must contain %s", outputPlaceholder)
	}
	if ext == "" {
		ext = "webm"
	}
	return &Recorder{args: args, ext: strings.TrimPrefix(ext, ".")}, nil
}

// Filename is the upload name matching the recorder's container.
func (r *Recorder) Filename() string { return "recording." + r.ext }

// Start launches the capture command.
func (r *Recorder) Start(context.Context) (companion.Recording, error) {
	dir, err := os.MkdirTemp("", "companion-rec-*")
	if err != nil {
		return nil, err
	}
	output := filepath.Join(dir, "capture."+r.ext)
	args, _ := substitute(r.args, outputPlaceholder, output)

	var stderr bytes.Buffer
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}

	rec := &recording{cmd: cmd, dir: dir, output: output, stderr: &stderr, done: make(chan error, 1)}
	go func() { rec.done <- cmd.Wait() }()
	return rec, nil
}

type recording struct {
	cmd    *exec.Cmd
	dir    string
	output string
	stderr *bytes.Buffer
	done   chan error
	once   sync.Once
}

// Stop interrupts the command so it can finalize the file, then reads it.
func (r *recording) Stop() ([]byte, error) {
	var data []byte
	err := errors.New("recording already released")
	r.once.Do(func() {
		defer os.RemoveAll(r.dir)

		select {
		case waitErr := <-r.done:
			// 进程提前退出通常是麦克风不可用
			if waitErr != nil {
				err = failure.Permission(fmt.Errorf("recorder exited: %w: %s", waitErr, strings.TrimSpace(r.stderr.String())))
				return
			}
		default:
			r.interrupt()
		}

		data, err = os.ReadFile(r.output)
		if err != nil {
			err = fmt.Errorf("read capture: %w", err)
		}
	})
	return data, err
}

// Abort kills the command and discards whatever was captured.
func (r *recording) Abort() error {
	r.once.Do(func() {
		defer os.RemoveAll(r.dir)
		if r.cmd.Process != nil {
			_ = r.cmd.Process.Kill()
		}
		<-r.done
	})
	return nil
}

func (r *recording) interrupt() {
	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = r.cmd.Process.Kill()
	}
	select {
	case <-r.done:
	case <-time.After(stopGrace):
		_ = r.cmd.Process.Kill()
		<-r.done
	}
}

// Speaker reads text aloud with a command. The text replaces {text}; when
// the template has no placeholder it is written to the command's stdin.
type Speaker struct {
	args []string
}

// NewSpeaker parses the speaker template.
func NewSpeaker(template string) (*Speaker, error) {
	args, err := SplitCommand(template)
	if err != nil {
		return nil, fmt.Errorf("speaker: %w", err)
	}
	return &Speaker{args: args}, nil
}

// Speak blocks until playback ends. Cancelling ctx kills the command.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	args, found := substitute(s.args, textPlaceholder, text)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if !found {
		cmd.Stdin = strings.NewReader(text)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
