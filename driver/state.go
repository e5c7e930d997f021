package driver

import (
	"sync"
	"time"
)

// BridgeState is the decoder lifecycle state.
type BridgeState int

const (
	StateIdle BridgeState = iota
	StateRunning
)

func (s BridgeState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// StatusInfo is a snapshot of the bridge for display.
type StatusInfo struct {
	State        string    `json:"state"`
	Message      string    `json:"message"`
	Port         string    `json:"port,omitempty"`
	DeviceActive bool      `json:"device_active"`
	IsConnected  bool      `json:"is_connected"`
	LastError    string    `json:"last_error,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	Events       int64     `json:"events"`
}

// StateChangeCallback is called with the new status after every change.
type StateChangeCallback func(info StatusInfo)

// StateMachine tracks bridge status. Status is read from control surfaces
// while the controller writes it, hence the lock.
type StateMachine struct {
	mu sync.RWMutex

	currentState BridgeState
	stateStarted time.Time
	port         string
	deviceActive bool
	isConnected  bool
	lastError    string
	events       int64

	onStateChange StateChangeCallback
}

// NewStateMachine creates a new state machine in IDLE.
func NewStateMachine() *StateMachine {
	return &StateMachine{currentState: StateIdle}
}

func (sm *StateMachine) SetCallback(cb StateChangeCallback) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onStateChange = cb
}

func (sm *StateMachine) GetState() BridgeState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

func (sm *StateMachine) GetStatusInfo() StatusInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.getStatusInfoLocked()
}

func (sm *StateMachine) getStatusInfoLocked() StatusInfo {
	info := StatusInfo{
		State:        sm.currentState.String(),
		Port:         sm.port,
		DeviceActive: sm.deviceActive,
		IsConnected:  sm.isConnected,
		LastError:    sm.lastError,
		Events:       sm.events,
	}

	if sm.currentState == StateRunning {
		info.StartedAt = sm.stateStarted
		info.ElapsedMs = time.Since(sm.stateStarted).Milliseconds()
	}

	switch {
	case sm.currentState == StateRunning:
		info.Message = "Listening for GamePad input on " + sm.port
	case sm.deviceActive:
		info.Message = "Virtual controller active without hardware; simulation only"
	case sm.lastError != "":
		info.Message = "Stopped: " + sm.lastError
	default:
		info.Message = "Ready"
	}
	return info
}

func (sm *StateMachine) notifyLocked() {
	if sm.onStateChange != nil {
		sm.onStateChange(sm.getStatusInfoLocked())
	}
}

// DeviceCreated records an active virtual controller.
func (sm *StateMachine) DeviceCreated() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.deviceActive = true
	sm.lastError = ""
	sm.events = 0
	sm.notifyLocked()
}

// Running records a started decoder on port.
func (sm *StateMachine) Running(port string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.currentState = StateRunning
	sm.stateStarted = time.Now()
	sm.port = port
	sm.isConnected = true
	sm.notifyLocked()
}

// CountEvent bumps the number of button events written this run.
func (sm *StateMachine) CountEvent() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.events++
}

// Failed records err without changing the lifecycle state.
func (sm *StateMachine) Failed(err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastError = err.Error()
	sm.notifyLocked()
}

// Reset returns to idle with nothing open. lastError survives so the
// operator can see why a run ended.
func (sm *StateMachine) Reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.currentState = StateIdle
	sm.stateStarted = time.Time{}
	sm.port = ""
	sm.deviceActive = false
	sm.isConnected = false
	sm.notifyLocked()
}
