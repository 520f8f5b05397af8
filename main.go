// Package main provides the entry point for the voicebank CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voicebank/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	verbose    bool
	noColor    bool

	rootCmd = &cobra.Command{
		Use:   "voicebank",
		Short: "Generate, review and publish spoken word recordings",
		Long: paragraph(
			fmt.Sprintf("\n%s a word list through a speech synthesis provider, pick the best voice for every word, and publish the approved recordings.", keyword("Voice")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
			if noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			return nil
		},
	}
)

// loadConfig reads the config file named by --config, if any, and decodes
// the result of file, environment and flags.
func loadConfig() (*config.Config, error) {
	if configFile != "" && configFile != viper.ConfigFileUsed() {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration in %s:\n%w", configPath(), err)
	}
	return cfg, nil
}

func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if configFile != "" {
		return configFile
	}
	return "defaults"
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("words", "w", "", "word list file (json, yaml or toml)")
	rootCmd.PersistentFlags().StringSlice("voices", nil, "voices to use, primary first")

	_ = viper.BindPFlag("words_file", rootCmd.PersistentFlags().Lookup("words"))
	_ = viper.BindPFlag("voices", rootCmd.PersistentFlags().Lookup("voices"))

	rootCmd.AddCommand(generateCmd, reviewCmd, uploadCmd, bundleCmd, statusCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "voicebank")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "voicebank")}, dirs...)
	}

	if c := os.Getenv("VOICEBANK_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	// A voicebank.yml next to the word list wins.
	dirs = append([]string{"."}, dirs...)

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("voicebank")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("voicebank")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[1], "voicebank.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
