package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stockroom-cli/internal/config"
	"stockroom-cli/internal/format"
)

const redacted = "***"

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file, environment and flags applied)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			data, err := configMap(redactConfig(*cfg))
			if err != nil {
				return writeErr(cmd, err)
			}
			path := strings.TrimSpace(app.ConfigPath)
			if path == "" {
				path, _ = config.DefaultPath()
			}
			_, statErr := os.Stat(path)
			return writeOut(cmd, app, format.Envelope{
				Data: data,
				Meta: map[string]any{"path": path, "exists": statErr == nil},
			})
		},
	})
	return cmd
}

func redactConfig(cfg config.Config) config.Config {
	if cfg.Auth.OAuth.ClientSecret != "" {
		cfg.Auth.OAuth.ClientSecret = redacted
	}
	if cfg.Store.S3.SecretAccessKey != "" {
		cfg.Store.S3.SecretAccessKey = redacted
	}
	if cfg.Store.PostgresDSN != "" {
		cfg.Store.PostgresDSN = redacted
	}
	return cfg
}

// configMap round-trips through YAML so the output uses the config file's
// key names.
func configMap(cfg config.Config) (map[string]any, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
