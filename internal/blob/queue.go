package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CleanupQueue is the durable queue cleanup jobs are published to.
const CleanupQueue = "blob.cleanup"

// CleanupJob asks a janitor to discard one image.
type CleanupJob struct {
	URL         string    `json:"url"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

// QueueCleaner publishes cleanup jobs to RabbitMQ from a single background
// goroutine. Jobs that cannot be queued or published are purged inline
// through the fallback cleaner so they are not lost.
type QueueCleaner struct {
	url         string
	fallback    *AsyncCleaner
	logger      *log.Logger
	dialTimeout time.Duration

	jobs      chan CleanupJob
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// QueueOption configures a QueueCleaner.
type QueueOption func(*QueueCleaner)

// WithDialTimeout bounds the broker dial and handshake.
func WithDialTimeout(d time.Duration) QueueOption {
	return func(q *QueueCleaner) {
		if d > 0 {
			q.dialTimeout = d
		}
	}
}

// WithBuffer sets how many jobs may wait for the publisher.
func WithBuffer(n int) QueueOption {
	return func(q *QueueCleaner) {
		if n > 0 {
			q.jobs = make(chan CleanupJob, n)
		}
	}
}

// NewQueueCleaner returns a publisher for the broker at url and starts it.
func NewQueueCleaner(url string, fallback *AsyncCleaner, logger *log.Logger, opts ...QueueOption) *QueueCleaner {
	if logger == nil {
		logger = log.Default()
	}
	q := &QueueCleaner{
		url:         url,
		fallback:    fallback,
		logger:      logger,
		dialTimeout: 3 * time.Second,
		jobs:        make(chan CleanupJob, 256),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.run()
	return q
}

// Discard queues a job for url. It never waits on the broker.
func (q *QueueCleaner) Discard(url, reason string) {
	if url == "" {
		return
	}
	job := CleanupJob{URL: url, Reason: reason, RequestedAt: time.Now().UTC()}
	select {
	case <-q.stop:
		q.purgeInline(job, "publisher closed")
		return
	default:
	}
	select {
	case q.jobs <- job:
	default:
		q.purgeInline(job, "publish buffer full")
	}
}

func (q *QueueCleaner) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			for {
				select {
				case job := <-q.jobs:
					q.purgeInline(job, "publisher closed")
				default:
					return
				}
			}
		case job := <-q.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := q.Publish(ctx, job)
			cancel()
			if err != nil {
				q.purgeInline(job, err.Error())
			}
		}
	}
}

func (q *QueueCleaner) purgeInline(job CleanupJob, cause string) {
	q.logger.Printf("blob: cleanup job for %s not queued: %s", job.URL, cause)
	if q.fallback != nil {
		q.fallback.Discard(job.URL, job.Reason)
	}
}

// Publish sends job as a persistent JSON message.
func (q *QueueCleaner) Publish(ctx context.Context, job CleanupJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ch, err := q.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    job.RequestedAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", CleanupQueue, false, false, pub); err != nil {
		q.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close stops the publisher, hands queued jobs to the fallback and releases
// the broker connection.
func (q *QueueCleaner) Close() error {
	q.closeOnce.Do(func() { close(q.stop) })
	<-q.done
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reset()
	return nil
}

func (q *QueueCleaner) channel() (*amqp.Channel, error) {
	if q.ch != nil && !q.ch.IsClosed() {
		return q.ch, nil
	}
	q.reset()

	conn, err := amqp.DialConfig(q.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(q.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(CleanupQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	q.conn, q.ch = conn, ch
	return ch, nil
}

func (q *QueueCleaner) reset() {
	if q.ch != nil {
		_ = q.ch.Close()
		q.ch = nil
	}
	if q.conn != nil {
		_ = q.conn.Close()
		q.conn = nil
	}
}

// Janitor consumes cleanup jobs and purges the images they name.
type Janitor struct {
	url     string
	store   Store
	logger  *log.Logger
	timeout time.Duration
}

// NewJanitor builds a consumer for the broker at url.
func NewJanitor(url string, store Store, timeout time.Duration, logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Janitor{url: url, store: store, logger: logger, timeout: timeout}
}

// Run consumes until ctx is cancelled, reconnecting with backoff when the
// broker drops the connection.
func (j *Janitor) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(j.url)
		if err != nil {
			j.logger.Printf("janitor: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = j.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		j.logger.Printf("janitor: consume loop ended: %v; reconnecting", err)
	}
}

func (j *Janitor) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		j.logger.Printf("janitor: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(CleanupQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(CleanupQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := j.Handle(ctx, d.Body); err != nil {
				j.logger.Printf("janitor: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one job payload.
func (j *Janitor) Handle(ctx context.Context, body []byte) error {
	var job CleanupJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if job.URL == "" {
		return errors.New("job without url")
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return Purge(ctx, j.store, job.URL, job.Reason, j.logger)
}
