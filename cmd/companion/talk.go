package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/companion"
	"github.com/zhouzirui/z-companion/backend/internal/companion/device"
	"github.com/zhouzirui/z-companion/backend/internal/companion/terminal"
)

func newTalkCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Start a voice conversation with a therapist profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTalk(ctx, e)
		},
	}
	cmd.Flags().StringVarP(&opts.therapist, "therapist", "t", "", "therapist id (overrides config)")
	return cmd
}

func runTalk(ctx context.Context, e *env) error {
	if e.cfg.TherapistID == "" {
		return errors.New("no therapist id: pass --therapist or set therapist_id in the config file")
	}

	term := terminal.New(os.Stdin, os.Stdout, terminal.DefaultTheme)

	// 每次会话开始时加载一次档案摘要
	summary, err := e.client.Summary(ctx, e.cfg.TherapistID)
	if err != nil {
		term.Error(err)
		return fmt.Errorf("load therapist %s: %w", e.cfg.TherapistID, err)
	}
	term.Header(summary)

	recorder, err := e.recorder()
	if err != nil {
		return err
	}
	speaker, err := device.NewSpeaker(e.cfg.Speaker)
	if err != nil {
		return err
	}
	minRecording, err := e.cfg.MinRecordingDuration()
	if err != nil {
		return err
	}
	stageTimeout, err := e.cfg.StageTimeoutDuration()
	if err != nil {
		return err
	}

	opts := companion.Options{
		TherapistID:   summary.ID,
		Recorder:      recorder,
		Transcriber:   e.client,
		Responder:     e.client,
		Speaker:       speaker,
		AudioName:     recorder.Filename(),
		MinRecording:  minRecording,
		StageTimeout:  stageTimeout,
		Log:           e.log,
		OnStateChange: term.Status,
	}
	if e.cfg.ManualFallback() {
		opts.Manual = term
	}

	ctrl, err := companion.NewController(opts)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	e.log.Debug("conversation started", zap.String("therapist", summary.ID))
	return term.Talk(ctx, ctrl, summary.DisplayName)
}
