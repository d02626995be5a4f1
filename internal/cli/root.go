// Package cli wires the cobra command tree. Every command builds its
// managers from the loaded config and renders through the shared renderer.
package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arnavsurve/emuctl/internal/config"
)

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "emuctl",
		Short: "Terminal-first virtual device management",
		Long: `emuctl manages Android emulators and iOS simulators from the terminal.

Common workflows:
  emuctl                       Interactive device dashboard
  emuctl devices list          Show all AVDs and simulators
  emuctl devices boot Pixel_7  Boot a device and wait for it
  emuctl devices create        Create a device from the catalogs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			level := zerolog.InfoLevel
			if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				level = parsed
			}
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show underlying tool invocations")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")
}

func Execute(ctx context.Context, version string) error {
	rootCmd.Version = version

	rootCmd.AddCommand(devicesCmd())
	rootCmd.AddCommand(tuiCmd())
	rootCmd.RunE = tuiCmd().RunE

	return rootCmd.ExecuteContext(ctx)
}
