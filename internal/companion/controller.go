// Package companion hosts the client side of a voice conversation: the turn
// state machine, the therapist setup wizard and the device/HTTP adapters they
// are driven with.
package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
)

// State 会话控制器状态。StateError 只出现在 OnStateChange 通知中，
// 失败的回合随即回到 StateIdle，错误保留在 LastError。
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
	StateSpeaking
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stage names the part of a turn that failed.
type Stage string

const (
	StageCapture       Stage = "capture"
	StageTranscription Stage = "transcription"
	StageCompletion    Stage = "completion"
)

// TurnError reports a failed turn. It unwraps to the failure kind.
type TurnError struct {
	Stage Stage
	Err   error
}

func (e *TurnError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *TurnError) Unwrap() error { return e.Err }

var (
	// ErrBusy is returned when an action is not allowed in the current state.
	ErrBusy = errors.New("companion: busy")
	// ErrNotRecording is returned by Stop outside of Recording.
	ErrNotRecording = errors.New("companion: not recording")
	// ErrAbandoned is returned when a turn was reset while it was processing.
	ErrAbandoned = errors.New("companion: turn abandoned")
)

// Recorder acquires the microphone.
type Recorder interface {
	Start(ctx context.Context) (Recording, error)
}

// Recording is an active capture. Exactly one of Stop or Abort releases it.
type Recording interface {
	Stop() ([]byte, error)
	Abort() error
}

// Transcriber turns one captured utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Responder produces the assistant reply for a user message.
type Responder interface {
	Reply(ctx context.Context, therapistID, message string, history []chat.Message) (string, error)
}

// Speaker reads text aloud and returns when playback ends or ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ManualEntry asks the user to type what they said after a failed
// transcription. ok is false when the user declines.
type ManualEntry interface {
	ManualText(ctx context.Context, cause error) (text string, ok bool)
}

// Options 构造控制器所需的依赖与参数
type Options struct {
	TherapistID  string
	Recorder     Recorder
	Transcriber  Transcriber
	Responder    Responder
	Speaker      Speaker
	Manual       ManualEntry // nil disables the typed fallback
	AudioName    string
	MinRecording time.Duration
	StageTimeout time.Duration
	Now          func() time.Time
	Log          *zap.Logger
	// OnStateChange is called outside the controller lock after every transition.
	OnStateChange func(State)
}

const (
	DefaultMinRecording = time.Second
	DefaultStageTimeout = time.Minute
)

// Controller drives capture → transcription → completion → playback for one
// conversation and owns its message history.
type Controller struct {
	therapistID  string
	recorder     Recorder
	transcriber  Transcriber
	responder    Responder
	speaker      Speaker
	manual       ManualEntry
	audioName    string
	minRecording time.Duration
	stageTimeout time.Duration
	now          func() time.Time
	log          *zap.Logger
	onChange     func(State)

	mu         sync.Mutex
	state      State
	messages   []chat.Message
	lastErr    error
	turn       uint64
	acquiring  bool
	recording  Recording
	startedAt  time.Time
	turnCancel context.CancelFunc
	playCancel context.CancelFunc
	playDone   chan struct{}
}

// NewController validates opts and returns an idle controller.
func NewController(opts Options) (*Controller, error) {
	switch {
	case strings.TrimSpace(opts.TherapistID) == "":
		return nil, failure.Validation("therapist id is required")
	case opts.Recorder == nil, opts.Transcriber == nil, opts.Responder == nil, opts.Speaker == nil:
		return nil, errors.New("companion: recorder, transcriber, responder and speaker are required")
	}

	c := &Controller{
		therapistID:  opts.TherapistID,
		recorder:     opts.Recorder,
		transcriber:  opts.Transcriber,
		responder:    opts.Responder,
		speaker:      opts.Speaker,
		manual:       opts.Manual,
		audioName:    opts.AudioName,
		minRecording: opts.MinRecording,
		stageTimeout: opts.StageTimeout,
		now:          opts.Now,
		log:          opts.Log,
		onChange:     opts.OnStateChange,
	}
	if c.audioName == "" {
		c.audioName = "recording.webm"
	}
	if c.minRecording <= 0 {
		c.minRecording = DefaultMinRecording
	}
	if c.stageTimeout <= 0 {
		c.stageTimeout = DefaultStageTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("component", "controller"), zap.String("therapist", c.therapistID))
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error of the last failed turn. Start and Reset clear it.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Messages returns a copy of the conversation history.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...)
}

// Start acquires the microphone. It is allowed from Idle only.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle || c.acquiring {
		c.mu.Unlock()
		return ErrBusy
	}
	c.lastErr = nil
	c.acquiring = true
	turn := c.turn
	c.mu.Unlock()

	// 打开设备可能较慢，期间不持有锁
	rec, err := c.recorder.Start(ctx)

	c.mu.Lock()
	c.acquiring = false
	if c.turn != turn {
		c.mu.Unlock()
		if rec != nil {
			if abortErr := rec.Abort(); abortErr != nil {
				c.log.Debug("abort recording", zap.Error(abortErr))
			}
		}
		return ErrAbandoned
	}
	if err != nil {
		turnErr := &TurnError{Stage: StageCapture, Err: failure.Permission(err)}
		c.failLocked(turnErr)
		c.mu.Unlock()
		c.notifyFailure()
		return turnErr
	}

	c.recording = rec
	c.startedAt = c.now()
	c.state = StateRecording
	c.mu.Unlock()

	c.notify(StateRecording)
	return nil
}

// Stop ends the capture and runs the turn to completion. It returns once the
// reply has been appended and playback started, or with the stage error.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	rec := c.recording
	c.recording = nil
	elapsed := c.now().Sub(c.startedAt)

	if elapsed < c.minRecording {
		if err := rec.Abort(); err != nil {
			c.log.Debug("abort recording", zap.Error(err))
		}
		turnErr := &TurnError{
			Stage: StageCapture,
			Err:   fmt.Errorf("%w: please record for at least %s", failure.ErrDuration, c.minRecording),
		}
		c.failLocked(turnErr)
		c.mu.Unlock()
		c.notifyFailure()
		return turnErr
	}

	audio, err := rec.Stop()
	if err == nil && len(audio) == 0 {
		err = fmt.Errorf("%w: no audio captured", failure.ErrDuration)
	}
	if err != nil {
		turnErr := &TurnError{Stage: StageCapture, Err: err}
		c.failLocked(turnErr)
		c.mu.Unlock()
		c.notifyFailure()
		return turnErr
	}

	c.turn++
	turn := c.turn
	turnCtx, cancel := context.WithCancel(ctx)
	c.turnCancel = cancel
	history := append([]chat.Message(nil), c.messages...)
	c.state = StateProcessing
	c.mu.Unlock()
	defer cancel()

	c.notify(StateProcessing)
	return c.process(turnCtx, turn, audio, history)
}

// process 依次执行转写、补全与播放。每次写入历史前都检查 turn 是否仍然有效。
func (c *Controller) process(ctx context.Context, turn uint64, audio []byte, history []chat.Message) error {
	text, err := c.transcribe(ctx, audio)
	if err != nil {
		if c.stale(turn) {
			return ErrAbandoned
		}
		typed, ok := c.fallback(ctx, err)
		if !ok {
			return c.failTurn(turn, &TurnError{Stage: StageTranscription, Err: err})
		}
		text = typed
	}

	if !c.appendCurrent(turn, chat.UserMessage(text)) {
		return ErrAbandoned
	}

	reply, err := c.complete(ctx, text, history)
	if err != nil {
		return c.failTurn(turn, &TurnError{Stage: StageCompletion, Err: err})
	}

	c.mu.Lock()
	if c.turn != turn || c.state != StateProcessing {
		c.mu.Unlock()
		return ErrAbandoned
	}
	c.messages = append(c.messages, chat.AssistantMessage(reply))
	c.turnCancel = nil
	play := c.playLocked(reply)
	c.mu.Unlock()

	c.notify(StateSpeaking)
	play()
	return nil
}

func (c *Controller) transcribe(ctx context.Context, audio []byte) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	text, err := c.transcriber.Transcribe(stageCtx, audio, c.audioName)
	if err != nil {
		return "", kinded(err, "transcription failed")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", failure.Upstream(nil, "transcription returned no text")
	}
	return text, nil
}

func (c *Controller) complete(ctx context.Context, text string, history []chat.Message) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, c.stageTimeout)
	defer cancel()

	reply, err := c.responder.Reply(stageCtx, c.therapistID, text, history)
	if err != nil {
		return "", kinded(err, "completion failed")
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", failure.Upstream(nil, "completion returned no text")
	}
	return reply, nil
}

func (c *Controller) fallback(ctx context.Context, cause error) (string, bool) {
	if c.manual == nil {
		return "", false
	}
	text, ok := c.manual.ManualText(ctx, cause)
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		c.log.Info("manual entry declined", zap.Error(cause))
		return "", false
	}
	return text, true
}

// Replay speaks the most recent assistant message again, interrupting any
// playback in progress. It does nothing when there is no reply yet.
func (c *Controller) Replay() error {
	for {
		c.mu.Lock()
		if c.state == StateRecording || c.state == StateProcessing || c.acquiring {
			c.mu.Unlock()
			return ErrBusy
		}
		last, ok := chat.LastAssistant(c.messages)
		if !ok {
			c.mu.Unlock()
			return nil
		}
		// 先等旧的播放退出，再开始新的
		if old := c.stopPlaybackLocked(); old != nil {
			c.mu.Unlock()
			<-old
			continue
		}
		play := c.playLocked(last.Content)
		c.mu.Unlock()

		c.notify(StateSpeaking)
		play()
		return nil
	}
}

// WaitPlayback blocks until the current playback finishes.
func (c *Controller) WaitPlayback(ctx context.Context) error {
	c.mu.Lock()
	done := c.playDone
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset abandons any turn in progress, releases the microphone, stops
// playback and clears the history.
func (c *Controller) Reset() {
	c.mu.Lock()
	old := c.resetLocked()
	c.messages = nil
	c.mu.Unlock()

	if old != nil {
		<-old
	}
	c.notify(StateIdle)
}

// Close releases every resource held by the controller. The history is kept.
func (c *Controller) Close() {
	c.mu.Lock()
	old := c.resetLocked()
	c.mu.Unlock()

	if old != nil {
		<-old
	}
}

func (c *Controller) resetLocked() chan struct{} {
	c.turn++
	if c.turnCancel != nil {
		c.turnCancel()
		c.turnCancel = nil
	}
	if c.recording != nil {
		if err := c.recording.Abort(); err != nil {
			c.log.Debug("abort recording", zap.Error(err))
		}
		c.recording = nil
	}
	old := c.stopPlaybackLocked()
	c.state = StateIdle
	c.lastErr = nil
	return old
}

// playLocked 进入 Speaking 并返回启动播放协程的函数，调用方在释放锁并通知之后调用。
func (c *Controller) playLocked(text string) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.playCancel = cancel
	c.playDone = done
	c.state = StateSpeaking

	return func() { go c.play(ctx, cancel, done, text) }
}

func (c *Controller) play(ctx context.Context, cancel context.CancelFunc, done chan struct{}, text string) {
	defer close(done)
	defer cancel()

	// 播放失败不影响会话，静默回到 Idle
	if err := c.speaker.Speak(ctx, text); err != nil && ctx.Err() == nil {
		c.log.Debug("speech playback failed", zap.Error(err))
	}

	c.mu.Lock()
	current := c.playDone == done
	if current {
		c.playCancel = nil
		c.playDone = nil
		c.state = StateIdle
	}
	c.mu.Unlock()

	if current {
		c.notify(StateIdle)
	}
}

// stopPlaybackLocked cancels the current playback and returns its done
// channel. The goroutine no longer owns the state once detached.
func (c *Controller) stopPlaybackLocked() chan struct{} {
	done := c.playDone
	if c.playCancel != nil {
		c.playCancel()
	}
	c.playCancel = nil
	c.playDone = nil
	return done
}

func (c *Controller) appendCurrent(turn uint64, msg chat.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turn != turn || c.state != StateProcessing {
		return false
	}
	c.messages = append(c.messages, msg)
	return true
}

func (c *Controller) stale(turn uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn != turn
}

func (c *Controller) failTurn(turn uint64, err *TurnError) error {
	c.mu.Lock()
	if c.turn != turn {
		c.mu.Unlock()
		return ErrAbandoned
	}
	c.turnCancel = nil
	c.failLocked(err)
	c.mu.Unlock()

	c.notifyFailure()
	return err
}

// failLocked 记录错误并直接回到 Idle，调用方释放锁后调用 notifyFailure。
func (c *Controller) failLocked(err error) {
	c.state = StateIdle
	c.lastErr = err
	c.log.Warn("turn failed", zap.Error(err))
}

func (c *Controller) notifyFailure() {
	c.notify(StateError)
	c.notify(StateIdle)
}

func (c *Controller) notify(s State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

// kinded keeps validation/not-found/upstream kinds and files everything else,
// timeouts included, as an upstream failure.
func kinded(err error, detail string) error {
	if errors.Is(err, failure.ErrValidation) || errors.Is(err, failure.ErrNotFound) || errors.Is(err, failure.ErrUpstream) {
		return err
	}
	return failure.Upstream(err, "%s", detail)
}
