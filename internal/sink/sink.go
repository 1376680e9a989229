// Package sink delivers deciphered messages to their destinations: the
// server log and, optionally, a Redis channel with a transcript list.
package sink

import (
	"context"
	"errors"
	"time"

	"railrelay/util"
)

// Message is one deciphered payload.
type Message struct {
	Identity  string    `json:"identity"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Key       int       `json:"key"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// Sink receives deciphered messages.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
	Close() error
}

// LogSink prints "<name> : <text>" at info level.
type LogSink struct {
	Logger *util.Logger
}

// Deliver logs msg.
func (s *LogSink) Deliver(_ context.Context, msg Message) error {
	s.Logger.Info("%s : %s", msg.Name, msg.Text)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }

// Multi fans a message out to several sinks.  A failing sink is logged
// and the remaining sinks still receive the message.
type Multi struct {
	Sinks  []Sink
	Logger *util.Logger
}

// NewMulti builds a fan-out over sinks, skipping nil entries.
func NewMulti(logger *util.Logger, sinks ...Sink) *Multi {
	m := &Multi{Logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.Sinks = append(m.Sinks, s)
		}
	}
	return m
}

// Deliver hands msg to every sink and joins their errors.
func (m *Multi) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.Deliver(ctx, msg); err != nil {
			if m.Logger != nil {
				m.Logger.Warn("sink: deliver from %s: %v", msg.Identity, err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
