package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamepad-bridge/logger"
	"gamepad-bridge/protocol"
)

// Options configures a Bridge. Zero durations take the defaults of the
// sniffer's wire protocol.
type Options struct {
	Device       DeviceConfig
	BaudRate     int
	PollInterval time.Duration
	LineTimeout  time.Duration
	StopTimeout  time.Duration
	Hold         time.Duration

	CreateDevice DeviceFactory
	OpenPort     func(name string, baudRate int) (Port, error)
	ListPorts    PortLister

	// QueueSize bounds the notification queue.
	QueueSize int
}

func (o *Options) setDefaults() {
	if o.BaudRate == 0 {
		o.BaudRate = 115200
	}
	if o.PollInterval == 0 {
		o.PollInterval = 10 * time.Millisecond
	}
	if o.LineTimeout == 0 {
		o.LineTimeout = protocol.DefaultLineTimeout
	}
	if o.StopTimeout == 0 {
		o.StopTimeout = 2 * time.Second
	}
	if o.Hold == 0 {
		o.Hold = 100 * time.Millisecond
	}
	if o.CreateDevice == nil {
		o.CreateDevice = CreateUinputDevice
	}
	if o.OpenPort == nil {
		o.OpenPort = OpenPort
	}
	if o.QueueSize == 0 {
		o.QueueSize = 256
	}
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
	cmdSimulate
)

type command struct {
	kind  cmdKind
	port  string
	reply chan error
}

// Bridge is the controlling unit. Serve runs a single loop that executes
// Start, Stop and Simulate one at a time and reacts to the decoder exiting;
// the virtual controller and the port are opened and closed only there.
type Bridge struct {
	opts     Options
	cmds     chan command
	done     chan struct{}
	notifier *Notifier
	state    *StateMachine

	// Owned by the Serve loop.
	pad        *Gamepad
	port       Port
	cancel     context.CancelFunc
	workerDone chan error
	sims       chan simRequest
}

// NewBridge creates a bridge. Nothing is opened until Start.
func NewBridge(opts Options) *Bridge {
	opts.setDefaults()
	b := &Bridge{
		opts:     opts,
		cmds:     make(chan command),
		done:     make(chan struct{}),
		notifier: NewNotifier(opts.QueueSize),
		state:    NewStateMachine(),
	}
	b.state.SetCallback(func(info StatusInfo) {
		b.notifier.Publish(Notification{Kind: KindState, Message: info.Message, Status: &info})
	})
	return b
}

// Notifications returns the queue every log line, button event, warning,
// error and state change is delivered on.
func (b *Bridge) Notifications() <-chan Notification { return b.notifier.C() }

// Status returns the current status snapshot.
func (b *Bridge) Status() StatusInfo { return b.state.GetStatusInfo() }

// Serve runs the controller loop until ctx ends, then tears everything down.
func (b *Bridge) Serve(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.teardown()
			return ctx.Err()
		case c := <-b.cmds:
			b.handle(ctx, c)
		case err := <-b.workerDone:
			b.workerExited(err)
		}
	}
}

// Start creates the virtual controller, opens port and starts decoding. A
// *BridgeError of kind ConnectionFailed means the controller is active but
// nothing is being read.
func (b *Bridge) Start(ctx context.Context, port string) error {
	return b.send(ctx, command{kind: cmdStart, port: port})
}

// Stop ends the run and releases the port and the controller. Stopping an
// idle bridge does nothing.
func (b *Bridge) Stop(ctx context.Context) error {
	return b.send(ctx, command{kind: cmdStop})
}

// Simulate presses and releases A on the virtual controller.
func (b *Bridge) Simulate(ctx context.Context) error {
	return b.send(ctx, command{kind: cmdSimulate})
}

func (b *Bridge) send(ctx context.Context, c command) error {
	c.reply = make(chan error, 1)
	select {
	case b.cmds <- c:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) handle(ctx context.Context, c command) {
	switch c.kind {
	case cmdStart:
		c.reply <- b.start(c.port)
	case cmdStop:
		b.stop()
		c.reply <- nil
	case cmdSimulate:
		b.simulate(ctx, c.reply)
	}
}

func (b *Bridge) publish(kind Kind, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch kind {
	case KindError:
		logger.Error("%s", msg)
	case KindWarning:
		logger.Warn("%s", msg)
	default:
		logger.Info("%s", msg)
	}
	b.notifier.Publish(Notification{Kind: kind, Message: msg})
}

func (b *Bridge) start(portName string) error {
	if b.pad != nil {
		return ErrAlreadyStarted
	}

	b.publish(KindLog, "Attempting to initialize virtual controller...")
	sink, err := b.opts.CreateDevice(b.opts.Device)
	if err != nil {
		be := &BridgeError{Kind: DeviceCreationFailed, Err: err}
		logger.Error("%v", be)
		b.notifier.Publish(Notification{Kind: KindError, Message: be.Error(), Hint: be.Hint()})
		b.state.Failed(be)
		return be
	}
	b.pad = NewGamepad(sink)
	b.state.DeviceCreated()
	b.publish(KindLog, "Virtual controller %q created", b.opts.Device.Name)

	resolved, err := ResolvePort(portName, b.opts.ListPorts)
	var port Port
	if err == nil {
		port, err = b.opts.OpenPort(resolved, b.opts.BaudRate)
	}
	if err != nil {
		be := &BridgeError{Kind: ConnectionFailed, Err: err}
		b.publish(KindWarning, "Serial failed: %v", err)
		b.publish(KindLog, "Hardware not found, but the virtual controller is active. Simulation still works.")
		b.state.Failed(be)
		return be
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Debug("Resetting input buffer on %s: %v", resolved, err)
	}

	b.port = port
	b.sims = make(chan simRequest, 1)
	b.workerDone = make(chan error, 1)
	workerCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	dec := &Decoder{
		Port:         port,
		Pad:          b.pad,
		PollInterval: b.opts.PollInterval,
		LineTimeout:  b.opts.LineTimeout,
		Notify: func(n Notification) {
			b.state.CountEvent()
			b.notifier.Publish(n)
		},
		sims: b.sims,
	}
	done := b.workerDone
	go func() { done <- dec.Run(workerCtx) }()

	b.state.Running(resolved)
	b.publish(KindLog, "Listening for GamePad input on %s...", resolved)
	return nil
}

func (b *Bridge) simulate(ctx context.Context, reply chan error) {
	if b.pad == nil {
		reply <- ErrNoDevice
		return
	}
	if b.workerDone != nil {
		select {
		case b.sims <- simRequest{hold: b.opts.Hold, reply: reply}:
			b.publish(KindLog, "SIMULATOR: Sending 'A' button press...")
		default:
			reply <- ErrBusy
		}
		return
	}

	b.publish(KindLog, "SIMULATOR: Sending 'A' button press...")
	reply <- simulatePress(ctx, b.pad, b.opts.Hold)
}

// simulatePress presses and releases A on pad and logs the pair.
func simulatePress(ctx context.Context, pad *Gamepad, hold time.Duration) error {
	if err := pad.SimulatePress(ctx, ButtonA, hold); err != nil {
		return err
	}
	logger.Button(ButtonA.Name, true, "simulator")
	logger.Button(ButtonA.Name, false, "simulator")
	return nil
}

// stopWorker cancels the decoder and waits up to StopTimeout for it. It
// reports whether the decoder exited in time.
func (b *Bridge) stopWorker() bool {
	if b.workerDone == nil {
		return true
	}
	b.cancel()

	t := time.NewTimer(b.opts.StopTimeout)
	defer t.Stop()
	exited := true
	select {
	case err := <-b.workerDone:
		if err != nil {
			b.reportFault(err)
		}
	case <-t.C:
		exited = false
		b.publish(KindWarning, "Decoder did not exit within %v; closing anyway", b.opts.StopTimeout)
	}
	b.workerDone = nil
	b.cancel = nil
	b.failPendingSims()
	return exited
}

// failPendingSims answers simulation requests the decoder never picked up.
func (b *Bridge) failPendingSims() {
	if b.sims == nil {
		return
	}
	for {
		select {
		case req := <-b.sims:
			req.reply <- ErrNoDevice
		default:
			b.sims = nil
			return
		}
	}
}

// release closes the port and then the controller.
func (b *Bridge) release() {
	if b.port != nil {
		if err := b.port.Close(); err != nil {
			logger.Debug("Closing port: %v", err)
		}
		b.port = nil
	}
	if b.pad != nil {
		if err := b.pad.Close(); err != nil {
			logger.Debug("Closing virtual controller: %v", err)
		}
		b.pad = nil
	}
}

func (b *Bridge) stop() {
	if b.pad == nil && b.port == nil && b.workerDone == nil {
		return
	}
	b.stopWorker()
	b.release()
	b.state.Reset()
	b.publish(KindLog, "Receiver stopped. Virtual controller disconnected.")
}

func (b *Bridge) workerExited(err error) {
	b.workerDone = nil
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.failPendingSims()

	if err != nil {
		b.reportFault(err)
	}
	b.release()
	b.state.Reset()
	b.publish(KindLog, "Receiver stopped. Virtual controller disconnected.")
}

// reportFault surfaces an error the decoder returned.
func (b *Bridge) reportFault(err error) {
	msg := err.Error()
	var be *BridgeError
	if errors.As(err, &be) {
		msg = be.Err.Error()
	}
	b.publish(KindError, "Serial read error: %s", msg)
	b.state.Failed(err)
}

func (b *Bridge) teardown() {
	if b.pad == nil && b.port == nil && b.workerDone == nil {
		return
	}
	b.stopWorker()
	b.release()
	b.state.Reset()
}
