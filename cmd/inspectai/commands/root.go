// Package commands implements the CLI commands for inspectai.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/dispatch"
	"github.com/jmylchreest/inspectai/pkg/settings"
)

var rootCmd = &cobra.Command{
	Use:   "inspectai",
	Short: "Pick an element on a web page and ask an AI about it",
	Long: `InspectAI lets you click an element on a live web page, cleans its
HTML, and sends it with your question to an AI provider or to Google
AI Mode.

Examples:
  # Pick an element in a browser window and print its cleaned HTML
  inspectai pick --url "https://example.com"

  # Pick an element and ask about it
  inspectai pick --url "https://example.com" --query "Summarise this table"

  # Ask about an element of a saved page
  inspectai ask -f page.html --selector "table.prices" --query "Cheapest plan?"

  # Serve the side panel protocol on a websocket
  inspectai serve --url "https://example.com"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log_json"),
		})
	},
}

// providerKeyEnv maps each provider to the environment variable holding its key.
var providerKeyEnv = map[string]string{
	settings.ProviderOpenAI:    "OPENAI_API_KEY",
	settings.ProviderAnthropic: "ANTHROPIC_API_KEY",
	settings.ProviderGemini:    "GEMINI_API_KEY",
	settings.ProviderLlama:     "GROQ_API_KEY",
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.String("config", "", "config file (default $HOME/.inspectai.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "suppress progress output")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("settings-dir", "", "settings directory (default: user config dir/inspectai)")

	// Provider overrides; saved settings are used when unset
	flags.StringP("provider", "p", "", "AI provider: openai, anthropic, gemini, llama, custom, google-ai-mode")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use the provider's env var)")
	flags.Int("max-tokens", 0, "maximum response tokens")
	flags.String("base-url", "", "base URL for the custom provider")

	for key, flag := range map[string]string{
		"config":       "config",
		"debug":        "debug",
		"quiet":        "quiet",
		"log_json":     "log-json",
		"settings_dir": "settings-dir",
		"provider":     "provider",
		"model":        "model",
		"api_key":      "api-key",
		"max_tokens":   "max-tokens",
		"base_url":     "base-url",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".inspectai")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("INSPECTAI")
	viper.AutomaticEnv()

	// Provider-specific keys, read when no explicit api_key is set
	for provider, env := range providerKeyEnv {
		_ = viper.BindEnv(provider+"_api_key", env)
	}

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// settingsStore opens the store in --settings-dir or the default location.
func settingsStore() (*settings.Store, error) {
	dir := viper.GetString("settings_dir")
	if dir == "" {
		var err error
		if dir, err = settings.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return settings.NewStore(dir), nil
}

// loadSettings returns the saved settings with flag, env and config file
// overrides applied.
func loadSettings() (settings.Settings, error) {
	store, err := settingsStore()
	if err != nil {
		return settings.Settings{}, err
	}
	s, err := store.Load()
	if err != nil {
		return settings.Settings{}, err
	}
	return applyOverrides(s), nil
}

func applyOverrides(s settings.Settings) settings.Settings {
	if p := viper.GetString("provider"); p != "" && p != s.Provider {
		s.Provider = p
		s.Model = ""
		s.APIKey = ""
	}
	if m := viper.GetString("model"); m != "" {
		s.Model = m
	}
	if n := viper.GetInt("max_tokens"); n > 0 {
		s.MaxTokens = n
	}
	if u := viper.GetString("base_url"); u != "" {
		s.CustomBaseURL = u
	}
	switch {
	case viper.GetString("api_key") != "":
		s.APIKey = viper.GetString("api_key")
	case s.APIKey == "":
		s.APIKey = viper.GetString(s.Provider + "_api_key")
	}
	return s.WithDefaults()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// userError reports err in the wording the panel would show and returns it.
func userError(err error) error {
	logError("%s", dispatch.UserMessage(err))
	return err
}
