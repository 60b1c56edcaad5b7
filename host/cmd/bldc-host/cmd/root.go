package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gobldc/host/config"
)

// RootCmd is the main entry point
var RootCmd = &cobra.Command{
	Use:   "bldc-host",
	Short: "host tools for the sensorless BLDC controller",
}

// flags
var (
	rootVerboseFlag bool
	rootConfigFlag  string
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVarP(&rootConfigFlag, "config", "c", "", "YAML config file, compiled-in defaults when empty")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

func loadConfig() (*config.Config, error) {
	if rootConfigFlag == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(rootConfigFlag)
	if err != nil {
		return nil, err
	}
	log.WithField("path", rootConfigFlag).Debug("loaded config")
	return cfg, nil
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
