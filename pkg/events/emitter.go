// Package events publishes indexing outcomes to NATS for downstream consumers.
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/soldag/soldag/internal/ledger"
	"github.com/soldag/soldag/pkg/logger"
)

type EventType string

const (
	EventTransaction EventType = "transaction"
	EventError       EventType = "error"
)

type Event struct {
	Type      EventType `json:"type"`
	Unit      string    `json:"unit,omitempty"`
	Data      any       `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

type Emitter interface {
	EmitTransaction(tx *ledger.Transaction) error
	EmitError(unit string, err error) error
	Close()
}

type natsEmitter struct {
	conn          *nats.Conn
	subjectPrefix string
}

// Connect dials NATS with unbounded reconnects, matching a long-lived
// indexing process.
func Connect(url, subjectPrefix string) (Emitter, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &natsEmitter{conn: conn, subjectPrefix: subjectPrefix}, nil
}

func (e *natsEmitter) EmitTransaction(tx *ledger.Transaction) error {
	return e.publish(e.subjectPrefix+".transaction", Event{
		Type:      EventTransaction,
		Data:      tx,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *natsEmitter) EmitError(unit string, err error) error {
	payload := map[string]string{}
	if err != nil {
		payload["message"] = err.Error()
	}
	return e.publish(e.subjectPrefix+".error", Event{
		Type:      EventError,
		Unit:      unit,
		Data:      payload,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *natsEmitter) publish(subject string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.conn.Publish(subject, data)
}

func (e *natsEmitter) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}

// Noop discards all events; used when NATS is disabled.
type Noop struct{}

func (Noop) EmitTransaction(*ledger.Transaction) error { return nil }
func (Noop) EmitError(string, error) error             { return nil }
func (Noop) Close()                                    {}
