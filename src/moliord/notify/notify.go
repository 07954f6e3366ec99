// Package notify delivers build lifecycle notifications and outbound hook
// fires to any number of registered sinks, at-least-once.
package notify

import (
	"time"

	"github.com/bitswalk/molior/src/common/logs"
	"github.com/google/uuid"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the notify package.
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Event is an already-computed snapshot handed to sinks. It is never a live
// handle to a Build row, so a sink cannot observe mid-transition state.
// DeliveryID is a fresh uuid per Notify call so a sink can de-duplicate the
// at-least-once delivery; outbound hooks get their own ids from RunHooks.
type Event struct {
	DeliveryID string
	Subject    string
	Action     string
	Payload    map[string]interface{}
	At         time.Time
}

// Sink receives lifecycle notifications.
type Sink interface {
	Notify(evt Event) error
}

// HookSink receives project-configured outbound hook fires for qualifying
// deb build transitions.
type HookSink interface {
	Fire(buildID int64, deliveryID string, payload map[string]interface{}) error
}

// Notifier fans a single notify/run_hooks call out to every registered sink.
type Notifier struct {
	sinks []Sink
	hooks []HookSink
}

// New creates a Notifier with no sinks registered.
func New() *Notifier {
	return &Notifier{}
}

// AddSink registers a notification sink.
func (n *Notifier) AddSink(s Sink) {
	n.sinks = append(n.sinks, s)
}

// AddHook registers an outbound hook sink.
func (n *Notifier) AddHook(h HookSink) {
	n.hooks = append(n.hooks, h)
}

// Notify delivers a build_changed-style notification to every sink. Delivery
// is at-least-once: a failing sink is logged and does not block the others.
func (n *Notifier) Notify(subject, action string, payload map[string]interface{}) {
	evt := Event{DeliveryID: uuid.NewString(), Subject: subject, Action: action, Payload: payload, At: time.Now()}
	for _, s := range n.sinks {
		if err := s.Notify(evt); err != nil {
			log.Warn("notification delivery failed", "subject", subject, "action", action, "error", err)
		}
	}
}

// RunHooks fires every registered outbound hook for buildID with payload,
// used only for qualifying deb build transitions per the state machine. Each
// hook receives its own delivery id so a receiver can de-duplicate retries.
func (n *Notifier) RunHooks(buildID int64, payload map[string]interface{}) {
	for _, h := range n.hooks {
		if err := h.Fire(buildID, uuid.NewString(), payload); err != nil {
			log.Warn("hook delivery failed", "build_id", buildID, "error", err)
		}
	}
}
