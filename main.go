// gamepad-bridge replays the button events of the Wii U GamePad sniffer
// firmware on a virtual Linux game controller.
package main

import (
	"errors"
	"fmt"
	"os"

	"gamepad-bridge/config"
	"gamepad-bridge/driver"
	"gamepad-bridge/logger"
	"gamepad-bridge/uinput"

	"github.com/spf13/cobra"
)

var version = "dev" // set by the linker

// app carries what PersistentPreRunE resolved to the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var be *driver.BridgeError
		if errors.As(err, &be) && be.Hint() != "" {
			fmt.Fprintln(os.Stderr, "hint:", be.Hint())
		}
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Tests call it for a fresh instance.
func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "gamepad-bridge",
		Short: "Bridge the Wii U GamePad sniffer to a virtual game controller.",
		Long: `gamepad-bridge reads BTN_A_DOWN / BTN_A_UP lines from the sniffer
microcontroller over a serial port (or tcp://host:port) and presses A on a
uinput virtual controller.

Running without a subcommand starts the WebSocket control server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			if cfg.LogDir != "" {
				if err := logger.Init(cfg.LogDir); err != nil {
					return err
				}
			}
			return logger.SetLevel(cfg.LogLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Version = version

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is <user config dir>/gamepad-bridge/gamepad-bridge.yaml)")
	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCmd(a),
		newConsoleCmd(a),
		newRunCmd(a),
		newSimulateCmd(a),
		newPortsCmd(),
		newConfigCmd(a),
	)
	return cmd
}

// bridgeOptions translates the configuration into bridge options.
func bridgeOptions(cfg *config.Config) (driver.Options, error) {
	caps, err := uinput.ProfileCapabilities(cfg.Device.Capabilities)
	if err != nil {
		return driver.Options{}, err
	}
	return driver.Options{
		Device: driver.DeviceConfig{
			Name: cfg.Device.Name,
			ID: uinput.DeviceID{
				Bustype: uinput.BUS_USB,
				Vendor:  cfg.Device.Vendor,
				Product: cfg.Device.Product,
				Version: 1,
			},
			Capabilities: caps,
		},
		BaudRate:     cfg.BaudRate,
		PollInterval: cfg.PollInterval,
		LineTimeout:  cfg.ReadTimeout,
		StopTimeout:  cfg.StopTimeout,
		Hold:         cfg.HoldDuration(),
	}, nil
}
