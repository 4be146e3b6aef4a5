package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "sophi"
)

type Config struct {
	Server      *ServerConfig      `mapstructure:"server"`
	DataDir     string             `mapstructure:"data-dir"`
	Heartbeat   *HeartbeatConfig   `mapstructure:"heartbeat"`
	AI          *AIConfig          `mapstructure:"ai"`
	Matchmaking *MatchmakingConfig `mapstructure:"matchmaking"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type HeartbeatConfig struct {
	TokenFile       string `mapstructure:"token-file"`
	AssistantUserID string `mapstructure:"assistant-user-id"`
	APIURL          string `mapstructure:"api-url"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	// Timeout bounds every AI call end to end, e.g. "30s". Zero means no bound.
	Timeout time.Duration `mapstructure:"timeout"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type MatchmakingConfig struct {
	// Weights selects the derivation strategy: "static" or "adaptive".
	Weights string `mapstructure:"weights"`
	// MaxConcurrency bounds how many candidates are scored in parallel.
	MaxConcurrency int `mapstructure:"max-concurrency"`
	// StaticWeights overrides individual entries of the built-in weight table.
	StaticWeights map[string]any `mapstructure:"static-weights"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "sophi is the matchmaking assistant for heartbeat.chat: it builds user profiles over DM and pairs compatible members",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("heartbeat.token-file", "HEARTBEAT_TOKEN_FILE"); err != nil {
		log.Fatalf("binding HEARTBEAT_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is sophi.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the serve and match commands. If neither was
	// called we can skip initialization.
	if serveCmd.CalledAs() == "" && matchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
