// Package audit records certificate authority operations as a tamper-evident
// JSON Lines log.
//
// Audit logs are separate from technical logs:
//   - every event is chained to the previous one with SHA-256
//   - timestamps are UTC
//   - secrets (private keys, passphrases) are never recorded
//
// A failed audit write fails the operation that produced it.
package audit

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

// EventType represents the category of audit event.
type EventType string

const (
	EventKeyGenerated   EventType = "KEY_GENERATED"
	EventCACreated      EventType = "CA_CREATED"
	EventCALoaded       EventType = "CA_LOADED"
	EventCertIssued     EventType = "CERT_ISSUED"
	EventCSRRejected    EventType = "CSR_REJECTED"
	EventChainValidated EventType = "CHAIN_VALIDATED"
)

// Result represents the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor represents who performed the action.
type Actor struct {
	Type string `json:"type"`           // "user", "service"
	ID   string `json:"id"`             // username or service identifier
	Host string `json:"host,omitempty"` // hostname or remote address
}

// Object represents what was acted upon.
type Object struct {
	Type    string `json:"type"`              // "certificate", "ca", "csr", "chain", "key"
	Serial  string `json:"serial,omitempty"`  // certificate serial number, hex
	Subject string `json:"subject,omitempty"` // subject DN
	Path    string `json:"path,omitempty"`    // file path
}

// Context provides additional details about the operation.
type Context struct {
	Profile   string   `json:"profile,omitempty"`
	Issuer    string   `json:"issuer,omitempty"`
	Algorithm string   `json:"algorithm,omitempty"`
	Scheme    string   `json:"scheme,omitempty"`
	NotAfter  string   `json:"not_after,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Status    []string `json:"status,omitempty"` // chain status codes
}

// Event represents a single audit log entry.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash"`
}

// NewEvent creates an event stamped now and attributed to the local user.
func NewEvent(eventType EventType, result Result) *Event {
	return &Event{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     LocalActor(),
		Result:    result,
	}
}

// LocalActor describes the user running the process.
func LocalActor() Actor {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME") // Windows
	}
	if username == "" {
		username = "unknown"
	}
	return Actor{Type: "user", ID: username, Host: hostname}
}

// WithObject sets the object field.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context field.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	switch {
	case e.EventType == "":
		return errors.New("event_type is required")
	case e.Timestamp == "":
		return errors.New("timestamp is required")
	case e.Actor.Type == "" || e.Actor.ID == "":
		return errors.New("actor type and id are required")
	case e.Result == "":
		return errors.New("result is required")
	}
	return nil
}

// CanonicalJSON returns the event without its Hash, the input to the chain
// hash.
func (e *Event) CanonicalJSON() ([]byte, error) {
	type eventForHash struct {
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Object    Object    `json:"object"`
		Context   Context   `json:"context,omitempty"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}
	return json.Marshal(eventForHash{
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Object:    e.Object,
		Context:   e.Context,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	})
}

// JSON returns the full event as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
