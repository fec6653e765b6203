package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/inspectai/internal/output"
	"github.com/jmylchreest/inspectai/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the saved provider settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved settings (API key redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := settingsStore()
		if err != nil {
			return err
		}
		s, err := store.Load()
		if err != nil {
			return err
		}
		return writeResult(cmd, settingsView(s.Redacted(), store.Dir()))
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save provider settings",
	Long: `Set saves the provider flags given on the command line. Flags not
given keep their saved value. Changing the provider resets the model
to that provider's default unless --model is also given.

Examples:
  inspectai settings set -p anthropic -k sk-ant-...
  inspectai settings set -p custom --base-url http://localhost:11434/v1 -m llama3.2
  inspectai settings set --max-tokens 4096`,
	RunE: runSettingsSet,
}

var settingsModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List providers and their models",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tAPI KEY\tMODELS")
		for _, p := range settings.Providers {
			models := strings.Join(settings.Models(p), ", ")
			if models == "" {
				models = "(any)"
			}
			key := "no"
			if settings.NeedsAPIKey(p) {
				key = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p, key, models)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsModelsCmd)

	addOutputFlags(settingsShowCmd, output.FormatYAML)
	settingsSetCmd.Flags().Bool("clear-api-key", false, "remove the saved API key")
}

// settingsDisplay is the settings as shown to the user, with where they live.
type settingsDisplay struct {
	settings.Settings `yaml:",inline"`
	Dir               string `json:"dir" yaml:"dir"`
	APIKey            string `json:"apiKey,omitempty" yaml:"api_key,omitempty"`
}

func settingsView(s settings.Settings, dir string) settingsDisplay {
	return settingsDisplay{Settings: s, Dir: dir, APIKey: s.APIKey}
}

func (d settingsDisplay) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Provider:   %s\n", d.Provider)
	fmt.Fprintf(&sb, "Model:      %s\n", d.Model)
	fmt.Fprintf(&sb, "Max tokens: %d\n", d.MaxTokens)
	if d.CustomBaseURL != "" {
		fmt.Fprintf(&sb, "Base URL:   %s\n", d.CustomBaseURL)
	}
	key := d.APIKey
	if key == "" {
		key = "(not set)"
	}
	fmt.Fprintf(&sb, "API key:    %s\n", key)
	fmt.Fprintf(&sb, "Stored in:  %s\n", d.Dir)
	return sb.String()
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	store, err := settingsStore()
	if err != nil {
		return err
	}
	s, err := store.Load()
	if err != nil {
		return err
	}

	if p := viper.GetString("provider"); p != "" && p != s.Provider {
		s.Provider = p
		s.Model = ""
	}
	if m := viper.GetString("model"); m != "" {
		s.Model = m
	}
	if n := viper.GetInt("max_tokens"); n != 0 {
		s.MaxTokens = n
	}
	if u := viper.GetString("base_url"); u != "" {
		s.CustomBaseURL = u
	}
	if k := viper.GetString("api_key"); k != "" {
		s.APIKey = k
	}
	if clearKey, _ := cmd.Flags().GetBool("clear-api-key"); clearKey {
		s.APIKey = ""
	}

	if err := store.Save(s); err != nil {
		return userError(err)
	}
	logInfo("Settings saved to %s", store.Dir())
	return nil
}
