package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docshost/internal/logfields"
)

// NATSQueue is a JetStream-backed durable queue. Jobs survive process
// restarts and are load-balanced across worker processes sharing the
// durable consumer.
type NATSQueue struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	subject   string
	out       chan *BuildJob
	done      chan struct{}
	consume   jetstream.ConsumeContext
	closeOnce sync.Once
}

// NATSConfig describes the stream the queue lives on.
type NATSConfig struct {
	URL     string
	Stream  string
	Subject string
	MaxSize int64 // max queued messages, 0 for unlimited
}

// NewNATSQueue connects to NATS, ensures the stream and durable consumer
// exist, and starts delivering jobs.
func NewNATSQueue(ctx context.Context, cfg NATSConfig) (*NATSQueue, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.WorkQueuePolicy,
		MaxMsgs:   cfg.MaxSize,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       "docshost-workers",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Minute,
		MaxDeliver:    1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	q := &NATSQueue{
		conn: conn, js: js, subject: cfg.Subject,
		out: make(chan *BuildJob), done: make(chan struct{}),
	}
	q.consume, err = cons.Consume(func(msg jetstream.Msg) {
		var job BuildJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			slog.Warn("Dropping undecodable build job", logfields.Error(err))
			_ = msg.Term()
			return
		}
		if q.deliver(&job) {
			_ = msg.Ack()
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	slog.Info("JetStream build queue ready", logfields.URL(cfg.URL), slog.String("stream", cfg.Stream))
	return q, nil
}

func (q *NATSQueue) Enqueue(ctx context.Context, job *BuildJob) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal build job: %w", err)
	}
	if _, err := q.js.Publish(ctx, q.subject, data); err != nil {
		return fmt.Errorf("publish build job: %w", err)
	}
	return nil
}

func (q *NATSQueue) Jobs() <-chan *BuildJob { return q.out }

// deliver hands one decoded job to a worker. During shutdown a callback
// may be blocked here; the done channel unblocks it so Close never races
// a send. An undelivered job stays unacked on the stream.
func (q *NATSQueue) deliver(job *BuildJob) bool {
	select {
	case q.out <- job:
		return true
	case <-q.done:
		return false
	}
}

// Close stops consumption and releases any callback blocked in deliver.
// The jobs channel is left open; workers drain via their own context.
func (q *NATSQueue) Close() error {
	q.closeOnce.Do(func() {
		if q.consume != nil {
			q.consume.Stop()
		}
		close(q.done)
		if q.conn != nil {
			q.conn.Close()
		}
	})
	return nil
}
