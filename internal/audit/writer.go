package audit

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Writer defines the interface for audit log writers.
//
// Implementations must fail Write when the event cannot be persisted, and
// must set HashPrev and Hash before persisting.
type Writer interface {
	Write(event *Event) error
	Close() error

	// LastHash returns the hash of the last written event, or GenesisHash.
	LastHash() string
}

// NopWriter discards all events. Used when audit logging is disabled.
type NopWriter struct{}

var _ Writer = NopWriter{}

func (NopWriter) Write(*Event) error { return nil }
func (NopWriter) Close() error       { return nil }
func (NopWriter) LastHash() string   { return GenesisHash }

// MultiWriter writes to multiple audit writers. If any writer fails, the
// write fails.
type MultiWriter struct {
	writers []Writer
}

var _ Writer = (*MultiWriter)(nil)

// NewMultiWriter creates a writer that writes to all provided writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(event *Event) error {
	for _, w := range m.writers {
		if err := w.Write(event); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) Close() error {
	var lastErr error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (m *MultiWriter) LastHash() string {
	if len(m.writers) > 0 {
		return m.writers[0].LastHash()
	}
	return GenesisHash
}

// MemoryWriter keeps a hash-chained log in memory.
type MemoryWriter struct {
	mu       sync.Mutex
	events   []Event
	lastHash string
}

var _ Writer = (*MemoryWriter)(nil)

// NewMemoryWriter creates an empty in-memory log.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{lastHash: GenesisHash}
}

func (m *MemoryWriter) Write(event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := chain(event, m.lastHash); err != nil {
		return err
	}
	m.events = append(m.events, *event)
	m.lastHash = event.Hash
	return nil
}

func (m *MemoryWriter) Close() error { return nil }

func (m *MemoryWriter) LastHash() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHash
}

// Events returns a copy of the recorded events.
func (m *MemoryWriter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// ZapWriter mirrors events into a technical log. It does not persist
// anything and is meant to be combined with a FileWriter in a MultiWriter.
type ZapWriter struct {
	logger *zap.Logger
}

var _ Writer = (*ZapWriter)(nil)

// NewZapWriter creates a writer that logs each event at info level.
func NewZapWriter(logger *zap.Logger) *ZapWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapWriter{logger: logger.Named("audit")}
}

func (z *ZapWriter) Write(event *Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	z.logger.Info(string(event.EventType),
		zap.String("result", string(event.Result)),
		zap.String("actor", event.Actor.ID),
		zap.String("object", event.Object.Type),
		zap.String("serial", event.Object.Serial),
		zap.String("subject", event.Object.Subject),
		zap.String("hash", event.Hash),
	)
	return nil
}

// Close flushes the logger. Sync errors on console outputs are ignored.
func (z *ZapWriter) Close() error {
	_ = z.logger.Sync()
	return nil
}

func (z *ZapWriter) LastHash() string { return GenesisHash }
