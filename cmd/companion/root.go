package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/companion/apiclient"
	"github.com/zhouzirui/z-companion/backend/internal/companion/device"
	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/pkg/logger"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	serverURL  string
	therapist  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "companion",
		Short: "Voice companion client",
		Long: `companion - talk to a therapist-style AI companion from the terminal.

Configuration is read from companion.yaml (see 'companion config init'),
then COMPANION_SERVER_URL / COMPANION_THERAPIST_ID, then flags.

Recording and playback run external commands:
  recorder  writes one utterance to {output} until interrupted (default ffmpeg)
  speaker   reads {text} aloud, or stdin when {text} is absent (default espeak)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultClientPath, "client config file")
	root.PersistentFlags().StringVar(&opts.serverURL, "server", "", "backend url (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(newTalkCmd(opts), newSetupCmd(opts), newConfigCmd(opts))
	return root
}

// env 包含 .env 与环境变量覆盖后的客户端配置
type env struct {
	cfg    config.ClientConfig
	log    *zap.Logger
	client *apiclient.Client
}

func (o *options) load() (*env, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.LoadClient(o.configPath)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("COMPANION_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("COMPANION_THERAPIST_ID"); v != "" {
		cfg.TherapistID = v
	}
	if o.serverURL != "" {
		cfg.ServerURL = o.serverURL
	}
	if o.therapist != "" {
		cfg.TherapistID = o.therapist
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	zl, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.StageTimeoutDuration()
	if err != nil {
		return nil, err
	}
	// 请求超时略大于阶段超时，由控制器的 context 先触发
	client, err := apiclient.New(cfg.ServerURL, &http.Client{Timeout: timeout + 10*time.Second})
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: zl, client: client}, nil
}

func (e *env) recorder() (*device.Recorder, error) {
	return device.NewRecorder(e.cfg.Recorder, "webm")
}

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the client config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			}
			if err := config.SaveClient(opts.configPath, config.DefaultClient()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			minRec, _ := e.cfg.MinRecordingDuration()
			stage, _ := e.cfg.StageTimeoutDuration()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server:          %s\n", e.cfg.ServerURL)
			fmt.Fprintf(out, "therapist:       %s\n", e.cfg.TherapistID)
			fmt.Fprintf(out, "min recording:   %s\n", minRec.Round(time.Millisecond))
			fmt.Fprintf(out, "stage timeout:   %s\n", stage)
			fmt.Fprintf(out, "manual fallback: %t\n", e.cfg.ManualFallback())
			fmt.Fprintf(out, "recorder:        %s\n", e.cfg.Recorder)
			fmt.Fprintf(out, "speaker:         %s\n", e.cfg.Speaker)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
