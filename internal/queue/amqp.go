package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes jobs to durable RabbitMQ queues, one per topic, so the
// server can hand passes to a separate worker process.
type AMQPQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	prefix     string
	maxRetries int
	log        logrus.FieldLogger

	mu sync.Mutex
}

// DialAMQP connects to the broker at url. Queue names are "<prefix>.<topic>".
func DialAMQP(url, prefix string, log logrus.FieldLogger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	return &AMQPQueue{conn: conn, ch: ch, prefix: prefix, maxRetries: 3, log: log}, nil
}

func (q *AMQPQueue) queueName(topic string) string {
	return q.prefix + "." + topic
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		q.queueName(topic),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(topic string, job Job) error {
	return q.publish(topic, job, 0)
}

func (q *AMQPQueue) publish(topic string, job Job, retries int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	dq, err := q.declare(topic)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return q.ch.Publish(
		"",
		dq.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Headers:      amqp.Table{retryHeader: int32(retries)},
			Body:         body,
		},
	)
}

// Subscribe starts a consumer goroutine for topic. Failed jobs are
// republished with an incremented retry header until maxRetries, then dropped.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	dq, err := q.declare(topic)
	if err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	msgs, err := q.ch.Consume(
		dq.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			q.handleDelivery(topic, d, handler)
		}
		q.log.WithField("topic", topic).Info("Consumer stopped")
	}()
	return nil
}

func (q *AMQPQueue) handleDelivery(topic string, d amqp.Delivery, handler Handler) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.WithError(err).WithField("topic", topic).Warn("⚠️ Invalid job, dropping")
		d.Ack(false)
		return
	}

	entry := q.log.WithFields(logrus.Fields{"topic": topic, "job_id": job.ID, "kind": job.Kind})
	if err := handler(job); err != nil {
		retries := RetryCount(d.Headers)
		if retries < q.maxRetries {
			entry.WithError(err).Warnf("Job failed, requeueing (retry %d/%d)", retries+1, q.maxRetries)
			if perr := q.publish(topic, job, retries+1); perr != nil {
				entry.WithError(perr).Error("❌ Failed to requeue job")
				d.Nack(false, true)
				return
			}
		} else {
			entry.WithError(err).Errorf("Job permanently failed after %d retries", retries)
		}
	}
	d.Ack(false)
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

// RetryCount reads the retry header, which brokers may hand back as any integer width.
func RetryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

var _ Queue = (*AMQPQueue)(nil)
