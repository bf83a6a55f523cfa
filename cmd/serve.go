package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/bridge-go/pkg/service"
	"github.com/theapemachine/bridge-go/pkg/stores"
	"github.com/theapemachine/bridge-go/pkg/swarm"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := viper.GetString("stores.dir")

			if dir == "" {
				home, err := os.UserHomeDir()

				if err != nil {
					return err
				}

				dir = filepath.Join(home, "."+projectName)
			}

			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return err
			}

			apiKey := googleAPIKey

			if apiKey == "" {
				apiKey = viper.GetString("google.api_key")
			}

			srv := service.NewBridgeServer(
				service.WithStores(
					stores.NewBridgeStore(filepath.Join(dir, "bridge.json")),
					stores.NewMemoryStore(filepath.Join(dir, "memories.json")),
					stores.NewGraphStore(filepath.Join(dir, "graph.json")),
				),
				service.WithRunner(swarm.NewRunner(swarm.WithCommand(
					viper.GetString("swarm.bin"),
					viper.GetStringSlice("swarm.args")...,
				))),
				service.WithOllamaEndpoint(viper.GetString("ollama.endpoint")),
				service.WithGoogleAPIKey(apiKey),
			)

			addr := fmt.Sprintf("%s:%d", hostFlag, portFlag)
			log.Info("bridge listening", "addr", addr, "stores", dir)

			return srv.Start(addr)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
}

var longServe = `
Serve the bridge over HTTP.

Examples:
  # Serve on the default port
  bridge-go serve

  # Serve on port 8080
  bridge-go serve --port 8080
`
