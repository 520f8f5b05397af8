package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# voices to render, primary first. The primary voice is used for batch
# generation; the others are offered during review.
voices: []
#  - "21m00Tcm4TlvDq8ikWAM"
#  - "AZnzlk1XvdvUeBnXmlld"

# word list (json, yaml or toml) and campaign state
words_file: "words.json"
progress_file: "progress.json"

cache:
  # renditions are stored as <dir>/<voice>/<id>.<ext>
  dir: "audio"

provider:
  # elevenlabs or mock
  name: "elevenlabs"
  base_url: "https://api.elevenlabs.io"
  model: "eleven_multilingual_v2"
  # mp3_44100_128, pcm_22050, ...; pcm output is stored as wav
  output_format: "mp3_44100_128"
  # per request timeout
  timeout: "30s"
  # retries after the first attempt for transient errors
  max_retries: 3
  requests_per_minute: 60
  stability: 0.5
  similarity_boost: 0.75
  style: 0.0
  speaker_boost: true
  # the API key is read from VOICEBANK_API_KEY or ELEVENLABS_API_KEY

generation:
  # pause between provider calls
  delay: "500ms"
  # leave a word failed after this many failed runs (0 retries forever)
  max_attempts: 0

playback:
  # auto, oto, command or none
  player: "auto"
  # external player, e.g. "mpv --really-quiet" (default: first found of
  # afplay, ffplay, mpv, mpg123, aplay)
  command: ""

upload:
  # nats or dir
  backend: "nats"
  prefix: "words"
  cache_control: "public, max-age=31536000, immutable"
  nats:
    url: "nats://127.0.0.1:4222"
    bucket: "voicebank"
  # destination directory for the dir backend
  dir: ""
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the voicebank config file",
	Long:    paragraph(fmt.Sprintf("\n%s the voicebank config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("voicebank config\nvoicebank config --config path/to/voicebank.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("voicebank", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
