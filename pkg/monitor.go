package salvator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Progress is a snapshot of a running analysis.
type Progress struct {
	RunID     string  `json:"run_id"`
	Processed int64   `json:"processed"`
	Dropped   int64   `json:"dropped"`
	Total     int64   `json:"total"`
	Rate      float64 `json:"events_per_second"`
	Remaining float64 `json:"seconds_to_go"`
}

// NewProgress computes rate and remaining time from the elapsed time.
func NewProgress(runID string, processed, dropped, total int64, elapsed time.Duration) Progress {
	p := Progress{RunID: runID, Processed: processed, Dropped: dropped, Total: total}
	if seconds := elapsed.Seconds(); seconds > 0 && processed > 0 {
		p.Rate = float64(processed) / seconds
		p.Remaining = float64(total-processed) / p.Rate
	}
	return p
}

func (p Progress) String() string {
	percent := 0.0
	if p.Total > 0 {
		percent = 100 * float64(p.Processed) / float64(p.Total)
	}
	return fmt.Sprintf("%5.1f %% done\t%.0f events/s %.0fs to go", percent, p.Rate, p.Remaining)
}

type Publisher interface {
	Publish(p Progress) error
	Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(Progress) error { return nil }
func (NopPublisher) Close()                 {}

// NatsPublisher sends progress snapshots as JSON to a NATS subject. Before
// Connect succeeds and after Close publishing is a no-op. During a reconnect
// the client buffers snapshots, so the analysis never waits on the server.
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
	mutex   sync.Mutex
	enabled bool
}

func NewNatsPublisher(subject string) *NatsPublisher {
	return &NatsPublisher{subject: subject}
}

func (p *NatsPublisher) Connect(natsURL string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	opts := []nats.Option{
		nats.Name("salvator-progress"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error(fmt.Sprintf("NATS disconnected: %v", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(fmt.Sprintf("NATS reconnected to %s", nc.ConnectedUrl()), "monitor")
		}),
	}

	var err error
	p.conn, err = nats.Connect(natsURL, opts...)
	if err != nil {
		p.enabled = false
		return fmt.Errorf("error connecting to NATS at %s: %w", natsURL, err)
	}
	p.enabled = true
	logger.Info(fmt.Sprintf("NATS connected to %s", natsURL), "monitor")
	return nil
}

func (p *NatsPublisher) Publish(progress Progress) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.enabled || p.conn == nil {
		return nil
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("error encoding progress: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("error publishing to %s: %w", p.subject, err)
	}
	return nil
}

func (p *NatsPublisher) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			logger.Error(fmt.Sprintf("Error draining NATS connection: %v", err))
		}
		p.conn = nil
	}
	p.enabled = false
}
