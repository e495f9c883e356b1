package terminal

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/companion"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
)

// Conversation is the part of companion.Controller the talk loop drives.
type Conversation interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Replay() error
	Reset()
	WaitPlayback(ctx context.Context) error
	State() companion.State
	Messages() []chat.Message
}

const talkHelp = "Enter: start/stop recording · r: replay · n: new conversation · q: quit"

// Talk runs the conversation loop until the user quits, input ends or ctx is
// cancelled. Quitting lets the last reply finish playing.
func (t *Terminal) Talk(ctx context.Context, conv Conversation, assistantName string) error {
	t.Info(talkHelp)
	shown := 0

	for {
		input, err := t.ReadLine(ctx, ">")
		switch {
		case errors.Is(err, io.EOF):
			return t.finish(ctx, conv)
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		}

		switch strings.ToLower(input) {
		case "":
			if conv.State() == companion.StateRecording {
				err = conv.Stop(ctx)
				shown = t.showNew(conv.Messages(), shown, assistantName)
			} else {
				err = conv.Start(ctx)
			}
		case "r":
			err = conv.Replay()
		case "n":
			conv.Reset()
			shown = 0
			t.Info("Started a new conversation.")
		case "q", "quit", "exit":
			return t.finish(ctx, conv)
		case "?", "h", "help":
			t.Info(talkHelp)
		default:
			t.Info("Unknown command. " + talkHelp)
		}

		switch {
		case err == nil, errors.Is(err, companion.ErrAbandoned):
		case errors.Is(err, companion.ErrBusy):
			t.Info("Please wait until the reply finishes.")
		default:
			t.Error(err)
		}
	}
}

// finish 等待正在播放的回复结束，ctx 取消时直接返回
func (t *Terminal) finish(ctx context.Context, conv Conversation) error {
	err := conv.WaitPlayback(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// showNew prints the messages appended since the last call. A failed
// completion still shows the user's own words.
func (t *Terminal) showNew(msgs []chat.Message, shown int, assistantName string) int {
	if shown > len(msgs) {
		shown = 0
	}
	for _, m := range msgs[shown:] {
		t.Message(m, assistantName)
	}
	return len(msgs)
}
