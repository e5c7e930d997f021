package driver

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gamepad-bridge/uinput"
)

func TestBridgeStartDecodeStop(t *testing.T) {
	tb := newTestBridge(t, nil)
	ctx := context.Background()

	if err := tb.Start(ctx, "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := tb.Status(); st.State != "RUNNING" || st.Port != "/dev/ttyUSB0" || !st.DeviceActive {
		t.Errorf("status after start = %+v", st)
	}

	tb.port.FeedLines("BTN_A_DOWN", "BTN_A_UP")
	waitFor(t, "press and release", func() bool { return len(tb.sink.Events()) == 4 })

	if err := tb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	want := []string{"press(A)", "sync", "release(A)", "sync"}
	if diff := cmp.Diff(want, tb.sink.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if !tb.port.Closed() {
		t.Error("port left open after Stop")
	}
	if tb.sink.Closed() != 1 {
		t.Errorf("device closed %d times; want 1", tb.sink.Closed())
	}
	if st := tb.Status(); st.State != "IDLE" || st.DeviceActive || st.IsConnected {
		t.Errorf("status after stop = %+v", st)
	}

	notes := drain(tb.Bridge)
	if got := countKind(notes, KindEvent); got != 2 {
		t.Errorf("got %d event notifications; want 2", got)
	}

	// Stopping again is harmless.
	if err := tb.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if tb.sink.Closed() != 1 {
		t.Errorf("device closed %d times after second Stop", tb.sink.Closed())
	}
}

func TestBridgeDeviceCreationFailed(t *testing.T) {
	tb := newTestBridge(t, func(tb *testBridge) {
		tb.createErr = &uinput.DeviceError{Op: "open /dev/uinput", Err: os.ErrPermission}
	})

	err := tb.Start(context.Background(), "/dev/ttyUSB0")
	if !IsKind(err, DeviceCreationFailed) {
		t.Fatalf("Start = %v; want DeviceCreationFailed", err)
	}
	if got := tb.Opened(); len(got) != 0 {
		t.Errorf("ports opened after device failure: %v", got)
	}

	notes := drain(tb.Bridge)
	if got := countKind(notes, KindError); got != 1 {
		t.Fatalf("got %d error notifications; want 1: %+v", got, notes)
	}
	for _, n := range notes {
		if n.Kind == KindError && n.Hint == "" {
			t.Errorf("error notification without hint: %+v", n)
		}
	}
	if st := tb.Status(); st.State != "IDLE" || st.DeviceActive {
		t.Errorf("status = %+v", st)
	}
	if err := tb.Simulate(context.Background()); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Simulate = %v; want ErrNoDevice", err)
	}
}

func TestBridgeConnectionFailedKeepsDevice(t *testing.T) {
	tb := newTestBridge(t, func(tb *testBridge) {
		tb.openErr = errors.New("no such file or directory")
	})
	ctx := context.Background()

	err := tb.Start(ctx, "/dev/ttyUSB9")
	if !IsKind(err, ConnectionFailed) {
		t.Fatalf("Start = %v; want ConnectionFailed", err)
	}
	if st := tb.Status(); st.State != "IDLE" || !st.DeviceActive {
		t.Errorf("status = %+v", st)
	}
	notes := drain(tb.Bridge)
	if countKind(notes, KindWarning) != 1 || countKind(notes, KindError) != 0 {
		t.Errorf("notifications = %+v", notes)
	}

	start := time.Now()
	if err := tb.Simulate(ctx); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Simulate returned after %v; want at least the hold time", elapsed)
	}
	want := []string{"press(A)", "sync", "release(A)", "sync"}
	if diff := cmp.Diff(want, tb.sink.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	if err := tb.Start(ctx, "/dev/ttyUSB9"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v; want ErrAlreadyStarted", err)
	}
	if err := tb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if tb.sink.Closed() != 1 {
		t.Errorf("device closed %d times; want 1", tb.sink.Closed())
	}
}

func TestBridgeReadFaultTearsDown(t *testing.T) {
	tb := newTestBridge(t, nil)
	if err := tb.Start(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(tb.Bridge)

	tb.port.FailWith(errUnplugged)
	waitFor(t, "teardown", func() bool { return tb.Status().State == "IDLE" && tb.sink.Closed() == 1 })

	if !tb.port.Closed() {
		t.Error("port left open after read fault")
	}
	if st := tb.Status(); st.LastError == "" || st.DeviceActive {
		t.Errorf("status = %+v", st)
	}
	errorNotes := 0
	waitFor(t, "error notification", func() bool {
		errorNotes += countKind(drain(tb.Bridge), KindError)
		return errorNotes > 0
	})
	if errorNotes != 1 {
		t.Errorf("got %d error notifications; want 1", errorNotes)
	}

	// The operator can start again after a fault.
	tb.port = NewMockPort()
	tb.sink = &recordingSink{}
	if err := tb.Start(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestBridgeSimulateWhileRunning(t *testing.T) {
	tb := newTestBridge(t, nil)
	ctx := context.Background()
	if err := tb.Start(ctx, "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tb.Simulate(ctx); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	want := []string{"press(A)", "sync", "release(A)", "sync"}
	if diff := cmp.Diff(want, tb.sink.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if err := tb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestBridgeSimulateIdle(t *testing.T) {
	tb := newTestBridge(t, nil)
	if err := tb.Simulate(context.Background()); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Simulate = %v; want ErrNoDevice", err)
	}
}

func TestBridgeAutoPort(t *testing.T) {
	tb := newTestBridge(t, nil)
	if err := tb.Start(context.Background(), AutoPort); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if diff := cmp.Diff([]string{"/dev/ttyUSB1"}, tb.Opened()); diff != "" {
		t.Errorf("opened ports (-want +got):\n%s", diff)
	}
}

func TestBridgeClosedAfterServe(t *testing.T) {
	b := NewBridge(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		b.Serve(ctx)
		close(served)
	}()
	cancel()
	<-served
	if err := b.Start(context.Background(), "/dev/null"); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Serve = %v; want ErrClosed", err)
	}
}

func TestBridgeStopWithStuckDecoder(t *testing.T) {
	port := newStuckPort()
	tb := newTestBridge(t, func(tb *testBridge) {
		tb.openPort = port
		tb.stopTimeout = 100 * time.Millisecond
	})
	ctx := context.Background()
	if err := tb.Start(ctx, "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(tb.Bridge)

	start := time.Now()
	if err := tb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Errorf("Stop took %v; want about the stop timeout", elapsed)
	}
	if port.Closes() != 1 {
		t.Errorf("port closed %d times; want 1", port.Closes())
	}
	if tb.sink.Closed() != 1 {
		t.Errorf("device closed %d times; want 1", tb.sink.Closed())
	}
	if st := tb.Status(); st.State != "IDLE" || st.DeviceActive {
		t.Errorf("status = %+v", st)
	}

	notes := drain(tb.Bridge)
	if got := countKind(notes, KindWarning); got != 1 {
		t.Errorf("got %d warnings; want 1: %+v", got, notes)
	}
}

func TestBridgeStopReportsPendingFault(t *testing.T) {
	b := NewBridge(Options{})
	sink := &recordingSink{}
	b.pad = NewGamepad(sink)
	b.port = NewMockPort()
	b.cancel = func() {}
	b.workerDone = make(chan error, 1)
	b.workerDone <- &BridgeError{Kind: ReadFault, Err: errUnplugged}

	b.stop()

	notes := drain(b)
	if got := countKind(notes, KindError); got != 1 {
		t.Fatalf("got %d error notifications; want 1: %+v", got, notes)
	}
	if st := b.Status(); st.State != "IDLE" || st.LastError == "" {
		t.Errorf("status = %+v", st)
	}
	if sink.Closed() != 1 {
		t.Errorf("device closed %d times; want 1", sink.Closed())
	}
}

func TestBridgeSimulateBusyIsNotLogged(t *testing.T) {
	b := NewBridge(Options{})
	b.pad = NewGamepad(&recordingSink{})
	b.workerDone = make(chan error, 1)
	b.sims = make(chan simRequest, 1)
	b.sims <- simRequest{reply: make(chan error, 1)}

	reply := make(chan error, 1)
	b.simulate(context.Background(), reply)

	if err := <-reply; !errors.Is(err, ErrBusy) {
		t.Errorf("simulate = %v; want ErrBusy", err)
	}
	if got := countKind(drain(b), KindLog); got != 0 {
		t.Errorf("got %d log notifications for a rejected press", got)
	}
}
