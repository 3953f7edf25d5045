package audit

import (
	"fmt"
	"time"
)

// Logger builds events for CA operations and writes them to a Writer.
// A nil *Logger discards everything.
type Logger struct {
	w     Writer
	actor Actor
	now   func() time.Time
}

// NewLogger creates a Logger. A nil writer disables auditing.
func NewLogger(w Writer, actor Actor) *Logger {
	if w == nil {
		w = NopWriter{}
	}
	if actor.Type == "" || actor.ID == "" {
		actor = LocalActor()
	}
	return &Logger{w: w, actor: actor, now: time.Now}
}

// Log writes event. The returned error must fail the audited operation.
func (l *Logger) Log(event *Event) error {
	if l == nil {
		return nil
	}
	if err := l.w.Write(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.w.Close()
}

func (l *Logger) event(t EventType, ok bool) *Event {
	result := ResultSuccess
	if !ok {
		result = ResultFailure
	}
	return &Event{
		EventType: t,
		Timestamp: l.now().UTC().Format(time.RFC3339),
		Actor:     l.actor,
		Result:    result,
	}
}

// KeyGenerated records a key pair generation. path is where the key was
// written, if anywhere.
func (l *Logger) KeyGenerated(algorithm, path string, ok bool) error {
	if l == nil {
		return nil
	}
	return l.Log(l.event(EventKeyGenerated, ok).
		WithObject(Object{Type: "key", Path: path}).
		WithContext(Context{Algorithm: algorithm}))
}

// CACreated records the creation of a root or intermediate CA.
func (l *Logger) CACreated(serial, subject, issuer, algorithm string, ok bool) error {
	if l == nil {
		return nil
	}
	return l.Log(l.event(EventCACreated, ok).
		WithObject(Object{Type: "ca", Serial: serial, Subject: subject}).
		WithContext(Context{Issuer: issuer, Algorithm: algorithm}))
}

// CALoaded records loading the issuing CA credential.
func (l *Logger) CALoaded(path, subject string, ok bool) error {
	if l == nil {
		return nil
	}
	return l.Log(l.event(EventCALoaded, ok).
		WithObject(Object{Type: "ca", Subject: subject, Path: path}))
}

// CertIssued records a certificate issuance or a failed attempt.
func (l *Logger) CertIssued(serial, subject, profile, scheme string, notAfter time.Time, ok bool, reason string) error {
	if l == nil {
		return nil
	}
	ctx := Context{Profile: profile, Scheme: scheme, Reason: reason}
	if !notAfter.IsZero() {
		ctx.NotAfter = notAfter.UTC().Format(time.RFC3339)
	}
	return l.Log(l.event(EventCertIssued, ok).
		WithObject(Object{Type: "certificate", Serial: serial, Subject: subject}).
		WithContext(ctx))
}

// CSRRejected records a request whose self-signature did not verify.
func (l *Logger) CSRRejected(subject, reason string) error {
	if l == nil {
		return nil
	}
	return l.Log(l.event(EventCSRRejected, false).
		WithObject(Object{Type: "csr", Subject: subject}).
		WithContext(Context{Reason: reason}))
}

// ChainValidated records a chain validation and its status codes.
func (l *Logger) ChainValidated(subject string, valid bool, status []string) error {
	if l == nil {
		return nil
	}
	return l.Log(l.event(EventChainValidated, valid).
		WithObject(Object{Type: "chain", Subject: subject}).
		WithContext(Context{Status: status}))
}
