/*
Package cmd implements the command-line interface for the bridge.
*/
package cmd

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/bridge-go/pkg/logging"
)

/*
Embed a mini filesystem into the binary to hold the default config file.
This will be written to the home directory of the user running the service,
which allows a developer to easily override the config file.
*/
//go:embed cfg/*
var embedded embed.FS

var (
	projectName  = "bridge-go"
	cfgFile      string
	googleAPIKey string

	rootCmd = &cobra.Command{
		Use:   "bridge-go",
		Short: "A local bridge between chat UIs and model backends",
		Long:  longRoot,
	}
)

/*
Execute is the main entry point for the bridge CLI. It initializes the root
command and executes it.
*/
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)

	rootCmd.PersistentFlags().StringVar(
		&googleAPIKey,
		"google-api-key",
		os.Getenv("GEMINI_API_KEY"),
		"API key for the Gemini backend",
	)
}

/*
initConfig writes the default config file to the user's home directory if it
doesn't exist, loads a local .env when present and reads the config file.
*/
func initConfig() {
	if err := writeConfig(); err != nil {
		log.Fatal("failed to write config", "error", err)
	}

	// A local .env can carry GEMINI_API_KEY during development
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	home, _ := os.UserHomeDir()
	viper.AddConfigPath(home + "/." + projectName)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatal("failed to read config", "error", err)
	}

	logging.Init(viper.GetString("logging.level"))

	if googleAPIKey == "" {
		googleAPIKey = os.Getenv("GEMINI_API_KEY")
	}
}

/*
writeConfig writes the default config file to the user's home directory.
*/
func writeConfig() (err error) {
	var (
		home, _ = os.UserHomeDir()
		fh      fs.File
		buf     bytes.Buffer
	)

	configDir := home + "/." + projectName

	if !checkFileExists(configDir) {
		if err = os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	for _, file := range []string{cfgFile} {
		fullPath := configDir + "/" + file

		if checkFileExists(fullPath) {
			continue
		}

		if fh, err = embedded.Open("cfg/" + file); err != nil {
			return fmt.Errorf("failed to open embedded config file: %w", err)
		}

		if _, err = io.Copy(&buf, fh); err != nil {
			fh.Close()
			return fmt.Errorf("failed to read embedded config file: %w", err)
		}

		if err = os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			fh.Close()
			return fmt.Errorf("failed to write config file: %w", err)
		}

		log.Info("wrote config file", "path", fullPath)
		buf.Reset()
		fh.Close()
	}

	return nil
}

func checkFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !errors.Is(err, os.ErrNotExist)
}

var longRoot = `
bridge-go sits between a local chat UI and its model backends.  It normalizes
the streaming wire formats of Ollama and Gemini into one event shape, relays
the output of spawned agent processes, and keeps the UI's approval queue,
agent memories and knowledge graph in plain JSON files.
`
