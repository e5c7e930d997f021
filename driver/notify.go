package driver

import (
	"sync/atomic"
	"time"
)

// Kind tags a Notification.
type Kind string

const (
	KindLog     Kind = "log"
	KindEvent   Kind = "event"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindState   Kind = "state"
)

// Notification is a message from the bridge to whatever drives it.
type Notification struct {
	Time    time.Time   `json:"time"`
	Kind    Kind        `json:"kind"`
	Message string      `json:"message"`
	Hint    string      `json:"hint,omitempty"`
	Button  string      `json:"button,omitempty"`
	Pressed bool        `json:"pressed"`
	Source  string      `json:"source,omitempty"`
	Status  *StatusInfo `json:"status,omitempty"`
}

// Notifier is a bounded queue of notifications. Publishing never blocks: when
// the queue is full the oldest notification is dropped.
type Notifier struct {
	ch      chan Notification
	dropped atomic.Int64
}

// NewNotifier creates a notifier holding up to size notifications.
func NewNotifier(size int) *Notifier {
	if size <= 0 {
		size = 1
	}
	return &Notifier{ch: make(chan Notification, size)}
}

// Publish queues note, dropping the oldest one when full.
func (n *Notifier) Publish(note Notification) {
	if note.Time.IsZero() {
		note.Time = time.Now()
	}
	for {
		select {
		case n.ch <- note:
			return
		default:
		}
		select {
		case <-n.ch:
			n.dropped.Add(1)
		default:
		}
	}
}

// C returns the receive side of the queue.
func (n *Notifier) C() <-chan Notification { return n.ch }

// Dropped returns how many notifications were discarded because nobody was
// draining the queue.
func (n *Notifier) Dropped() int64 { return n.dropped.Load() }
