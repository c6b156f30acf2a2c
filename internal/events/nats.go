package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher sends every event as JSON on "<prefix>.<type>".
type Publisher struct {
	conn   Conn
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials url and keeps reconnecting in the background.
func Connect(url, prefix string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("geofix"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	p := NewPublisher(nc, prefix, logger)
	p.nc = nc
	return p, nil
}

// NewPublisher publishes on conn. An empty prefix defaults to "geofix".
func NewPublisher(conn Conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = "geofix"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject events of type t are published on.
func (p *Publisher) Subject(t Type) string { return p.prefix + "." + string(t) }

func (p *Publisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("could not encode event", zap.Error(err))
		return
	}
	if err := p.conn.Publish(p.Subject(e.Type), data); err != nil {
		p.logger.Warn("could not publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
