package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamepad-bridge/api"
	"gamepad-bridge/config"
	"gamepad-bridge/driver"
	"gamepad-bridge/logger"
	"gamepad-bridge/tui"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newBridge builds a bridge from the loaded config and starts its controller
// loop. The loop ends when ctx is cancelled.
func (a *app) newBridge(ctx context.Context) (*driver.Bridge, <-chan error, error) {
	opts, err := bridgeOptions(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	b := driver.NewBridge(opts)
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx) }()
	return b, done, nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket control server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signalContext(parent)
	defer stop()

	b, served, err := a.newBridge(ctx)
	if err != nil {
		return err
	}

	handler := api.NewHandler(b, a.cfg.Port)
	go handler.Broadcast(ctx, b.Notifications())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	srv := &http.Server{Addr: a.cfg.WSAddr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Server listening on %s", a.cfg.WSAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		stop()
		<-served
		return fmt.Errorf("websocket server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown: %v", err)
	}
	<-served
	logger.Info("Server stopped")
	return nil
}

func newConsoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the interactive terminal console",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			b, served, err := a.newBridge(ctx)
			if err != nil {
				return err
			}
			err = tui.Run(b, b.Notifications(), a.cfg.Port)
			stop()
			<-served
			return err
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start bridging immediately and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.run(ctx, cmd.OutOrStdout())
		},
	}
}

// run starts the bridge on the configured port and prints notifications until
// ctx ends or the decoder stops on its own.
func (a *app) run(ctx context.Context, out io.Writer) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, served, err := a.newBridge(loopCtx)
	if err != nil {
		return err
	}
	defer func() {
		cancel()
		<-served
	}()

	notes := b.Notifications()
	startErr := make(chan error, 1)
	go func() { startErr <- b.Start(ctx, a.cfg.Port) }()

	var (
		running bool
		lastErr error
	)
	for {
		select {
		case err := <-startErr:
			if err != nil {
				drainNotes(notes, out)
				return err
			}
			startErr = nil
		case n := <-notes:
			printNote(out, n)
			switch {
			case n.Kind == driver.KindError:
				lastErr = errors.New(n.Message)
			case n.Kind == driver.KindState && n.Status != nil:
				if n.Status.State == driver.StateRunning.String() {
					running = true
				} else if running {
					drainNotes(notes, out)
					return lastErr
				}
			}
		case <-ctx.Done():
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			err := b.Stop(stopCtx)
			drainNotes(notes, out)
			return err
		}
	}
}

func drainNotes(notes <-chan driver.Notification, out io.Writer) {
	for {
		select {
		case n := <-notes:
			printNote(out, n)
		default:
			return
		}
	}
}

func printNote(out io.Writer, n driver.Notification) {
	if n.Kind == driver.KindState {
		return
	}
	fmt.Fprintf(out, "[%s] %s\n", n.Kind, n.Message)
	if n.Hint != "" {
		fmt.Fprintf(out, "        hint: %s\n", n.Hint)
	}
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		count  int
		settle time.Duration
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Create the virtual controller and press A without hardware",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			opts, err := bridgeOptions(a.cfg)
			if err != nil {
				return err
			}
			sink, err := driver.CreateUinputDevice(opts.Device)
			if err != nil {
				return &driver.BridgeError{Kind: driver.DeviceCreationFailed, Err: err}
			}
			pad := driver.NewGamepad(sink)
			defer pad.Close()

			// Give udev and readers time to pick up the new device.
			select {
			case <-time.After(settle):
			case <-ctx.Done():
				return ctx.Err()
			}

			for i := 0; i < count; i++ {
				if err := pad.SimulatePress(ctx, driver.ButtonA, a.cfg.HoldDuration()); err != nil {
					return err
				}
				logger.Button(driver.ButtonA.Name, true, "simulated")
				logger.Button(driver.ButtonA.Name, false, "simulated")
				fmt.Fprintln(cmd.OutOrStdout(), "Simulated: GamePad 'A' Pressed and Released")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of presses")
	cmd.Flags().DurationVar(&settle, "settle", 500*time.Millisecond, "Wait after creating the device before pressing")
	return cmd
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List candidate serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := driver.DiscoverPorts(nil)
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "write [path]",
		Short: "Write the effective configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			written, err := config.WriteFile(a.cfg, path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", written)
			return nil
		},
	})
	return cmd
}
