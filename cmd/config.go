package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration gridstitch would run with after merging flags,
GRIDSTITCH_* environment variables and the config file.

The output is a valid config file:
  gridstitch config > ~/.gridstitch.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := effectiveConfig()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func effectiveConfig() ([]byte, error) {
	settings := viper.AllSettings()
	// never persist a one-off output path
	delete(settings, "output")

	out, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
