package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aayushsingh7/vidchemy/internal/models"
)

const streamName = "LISTING_JOBS"

// Client is the dispatch queue: a JetStream work queue carrying
// DispatchMessage payloads from ingestion to the pipeline workers. JetStream
// gives the two properties ingestion relies on: the publish is durable
// (survives a worker restart) and delivery is at-least-once with explicit
// acks.
type Client struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	queue   string
}

// Connect dials NATS and ensures the job stream exists.
func Connect(url, subject, workerQueue string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", streamName, err)
	}

	return &Client{nc: nc, js: js, subject: subject, queue: workerQueue}, nil
}

// Close drains the connection so in-flight messages finish before shutdown.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// PublishJob enqueues a dispatch message. Fire-and-forget from the caller's
// perspective; the synchronous publish only confirms the broker has the
// message, not that any processing happened.
func (c *Client) PublishJob(msg models.DispatchMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch message: %w", err)
	}
	if _, err := c.js.Publish(c.subject, b); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", msg.JobID, err)
	}
	return nil
}

// PullSubscribe binds the durable worker group to the job subject. Workers
// fetch from the returned subscription and ack explicitly, which is what
// keeps a crash mid-job from losing the message. ackWait must exceed the
// worst-case pipeline duration or the broker will redeliver mid-run.
func (c *Client) PullSubscribe(ackWait time.Duration) (*nats.Subscription, error) {
	sub, err := c.js.PullSubscribe(c.subject, c.queue,
		nats.ManualAck(),
		nats.AckWait(ackWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.subject, err)
	}
	return sub, nil
}

// DecodeMessage parses a raw queue message into a DispatchMessage.
func DecodeMessage(m *nats.Msg) (models.DispatchMessage, error) {
	var msg models.DispatchMessage
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		return msg, fmt.Errorf("malformed dispatch message: %w", err)
	}
	return msg, nil
}
