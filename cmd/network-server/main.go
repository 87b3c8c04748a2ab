// Command network-server runs the LoRaWAN network server: it reads a TOML
// config file, wires storage, the uplink/downlink pipelines, the scheduler
// and the MQTT gateway bridge, and blocks until terminated. Structured the
// way chirpstack-network-server's own cmd package does (its sibling
// project, by the same author as the frame codec the rest of this server
// is grounded on): a cobra root command with a single "run" behavior and a
// --config flag, rather than a verb-per-subcommand CLI.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "network-server",
	Short: "LoRaWAN network server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfgFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "network-server.toml", "path to configuration file")

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
