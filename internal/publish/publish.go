// Package publish pushes per-scenario results onto NATS so downstream
// consumers (dashboards, alerting) see outcomes as they happen.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"fareprobe/internal/scenario"
)

const subjectPrefix = "fareprobe.results."

// Publisher wraps a NATS connection.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials the NATS server.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("fareprobe"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{nc: nc}, nil
}

// Event is the wire form of a published result.
type Event struct {
	RunID     string          `json:"run_id"`
	Report    scenario.Report `json:"report"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publish sends one report on fareprobe.results.<test_id>.
func (p *Publisher) Publish(runID string, rep scenario.Report) error {
	ev := Event{RunID: runID, Report: rep, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(subjectPrefix+rep.TestID, data); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// Close flushes pending messages and drops the connection.
func (p *Publisher) Close() {
	_ = p.nc.Flush()
	p.nc.Close()
}
