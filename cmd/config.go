package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reputexa/reputexa/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with credentials redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := renderConfig(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// renderConfig marshals a copy of c as YAML with keys and the database URL
// masked.
func renderConfig(c *config.Config) ([]byte, error) {
	shown := *c
	shown.OpenAI.Key = redact(c.OpenAI.Key)
	shown.Anthropic.Key = redact(c.Anthropic.Key)
	shown.Google.Key = redact(c.Google.Key)
	if c.Store.Driver == "postgres" {
		shown.Store.DatabaseURL = redact(c.Store.DatabaseURL)
	}
	out, err := yaml.Marshal(&shown)
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal yaml")
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
}
