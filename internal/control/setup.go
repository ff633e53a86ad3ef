package control

import (
	"fmt"

	"voxnote/internal/backend"
	"voxnote/internal/config"
	"voxnote/internal/run"

	"github.com/spf13/cobra"
)

// NewSetupCmd points the config at a backend and checks it answers.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write the backend URL to config and check it answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if url, _ := cmd.Flags().GetString("server"); url != "" {
				cfg.Server.URL = url
			}
			if body, _ := cmd.Flags().GetString("tts-body"); body != "" {
				cfg.TTS.Body = body
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			cmd.Printf("config written to %s\n", cfg.Paths.ConfigPath)

			be, err := backend.New(run.BackendOptions(cfg), nil)
			if err != nil {
				return err
			}
			if err := be.Ping(contextOf(cmd)); err != nil {
				return fmt.Errorf("backend %s not reachable: %w", cfg.Server.URL, err)
			}
			cmd.Printf("backend %s ok\n", cfg.Server.URL)
			return nil
		},
	}
	cmd.Flags().String("server", "", "backend base URL (e.g., http://127.0.0.1:8080)")
	cmd.Flags().String("tts-body", "", "text-to-speech request body: json or form")
	return cmd
}
