package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Topics carried by the job queue.
const (
	TopicSync     = "outreach.sync"
	TopicFollowup = "outreach.followup"
	TopicLaunch   = "outreach.launch"
)

// Job asks a worker to run one pass. CampaignID is only set for launches.
type Job struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	CampaignID  int       `json:"campaign_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewJob stamps a job with a fresh id.
func NewJob(kind string, campaignID int) Job {
	return Job{ID: uuid.NewString(), Kind: kind, CampaignID: campaignID, RequestedAt: time.Now().UTC()}
}

// Handler processes one job; a non-nil error asks for a retry.
type Handler func(job Job) error

// Queue interface
type Queue interface {
	Publish(topic string, job Job) error
	Subscribe(topic string, handler Handler) error
}

// InMemoryQueue delivers jobs to in-process subscribers with retry.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]Handler
	maxRetries int
	backoff    time.Duration
	log        logrus.FieldLogger
	wg         sync.WaitGroup
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log logrus.FieldLogger) *InMemoryQueue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		log:        log,
	}
}

// WithBackoff overrides the retry policy; tests use a tiny backoff.
func (q *InMemoryQueue) WithBackoff(maxRetries int, backoff time.Duration) *InMemoryQueue {
	q.maxRetries = maxRetries
	q.backoff = backoff
	return q
}

// jobPayload wraps a job with retry info
type jobPayload struct {
	Job        Job
	RetryCount int
	MaxRetries int
}

// Publish sends a job to all subscribers of topic
func (q *InMemoryQueue) Publish(topic string, job Job) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.processJob(topic, handler, jobPayload{Job: job, MaxRetries: q.maxRetries})
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler Handler, p jobPayload) {
	defer q.wg.Done()
	entry := q.log.WithFields(logrus.Fields{"topic": topic, "job_id": p.Job.ID, "kind": p.Job.Kind})

	for p.RetryCount <= p.MaxRetries {
		err := handler(p.Job)
		if err == nil {
			entry.Debug("Job processed successfully")
			return // ACK
		}

		p.RetryCount++
		entry.WithError(err).Warnf("Job failed (attempt %d/%d)", p.RetryCount, p.MaxRetries)

		if p.RetryCount > p.MaxRetries {
			entry.Errorf("Job permanently failed after %d attempts", p.MaxRetries)
			return // No requeue
		}

		// Linear backoff before retry
		time.Sleep(time.Duration(p.RetryCount) * q.backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished or given up.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

var _ Queue = (*InMemoryQueue)(nil)
