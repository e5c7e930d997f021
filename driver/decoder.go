package driver

import (
	"context"
	"fmt"
	"time"

	"gamepad-bridge/logger"
	"gamepad-bridge/protocol"
)

// simRequest asks the running decoder to perform a simulated press, since the
// decoder owns the device while it runs.
type simRequest struct {
	hold  time.Duration
	reply chan error
}

// Decoder reads tokens from Port and drives Pad. It is the only goroutine that
// touches either while Run is executing.
type Decoder struct {
	Port         Port
	Pad          *Gamepad
	PollInterval time.Duration
	LineTimeout  time.Duration

	// Notify receives event and diagnostic notifications. It must not block.
	Notify func(Notification)

	sims <-chan simRequest
}

// Run decodes until ctx is cancelled, returning nil, or until reading,
// decoding or writing the device fails, returning a ReadFault.
func (d *Decoder) Run(ctx context.Context) error {
	framer := protocol.NewFramer(d.LineTimeout)
	buf := make([]byte, protocol.MaxLineLen)

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.sims:
			req.reply <- simulatePress(ctx, d.Pad, req.hold)
			continue
		default:
		}

		n, err := d.Port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &BridgeError{Kind: ReadFault, Err: err}
		}

		if n == 0 {
			if stale := framer.Expire(); stale != nil {
				logger.Debug("Discarded incomplete line %q", stale)
			}
			if !sleepCtx(ctx, d.PollInterval) {
				return nil
			}
			continue
		}

		for _, line := range framer.Feed(buf[:n]) {
			if err := d.dispatch(line); err != nil {
				return err
			}
		}
	}
}

func (d *Decoder) dispatch(line []byte) error {
	cmd, err := protocol.Decode(line)
	if err != nil {
		return &BridgeError{Kind: ReadFault, Err: fmt.Errorf("decoding %q: %w", line, err)}
	}
	if cmd == protocol.CommandNone {
		return nil
	}

	logger.Token("rx", cmd.String())
	pressed := cmd.Pressed()
	if err := d.Pad.SetButton(ButtonA, pressed); err != nil {
		return &BridgeError{Kind: ReadFault, Err: fmt.Errorf("writing %s to virtual controller: %w", cmd, err)}
	}
	logger.Button(ButtonA.Name, pressed, "serial")

	if d.Notify != nil {
		d.Notify(Notification{
			Kind:    KindEvent,
			Message: eventMessage("Hardware", ButtonA, pressed),
			Button:  ButtonA.Name,
			Pressed: pressed,
			Source:  "serial",
		})
	}
	return nil
}

func eventMessage(source string, b Button, pressed bool) string {
	verb := "Released"
	if pressed {
		verb = "Pressed"
	}
	return fmt.Sprintf("%s: GamePad '%s' %s", source, b.Name, verb)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
