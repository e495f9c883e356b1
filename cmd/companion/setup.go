package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-companion/backend/internal/companion"
	"github.com/zhouzirui/z-companion/backend/internal/companion/terminal"
	"github.com/zhouzirui/z-companion/backend/internal/config"
)

func newSetupCmd(opts *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create a therapist profile: basic info, six voice samples, guardrails",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			defer e.log.Sync()

			recorder, err := e.recorder()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			term := terminal.New(os.Stdin, os.Stdout, terminal.DefaultTheme)
			res, err := term.Setup(ctx, companion.NewWizard(), recorder, e.client)
			if err != nil {
				return err
			}

			if save {
				e.cfg.TherapistID = res.TherapistID
				if err := config.SaveClient(opts.configPath, e.cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved therapist id to %s\n", opts.configPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the new therapist id in the config file")
	return cmd
}
