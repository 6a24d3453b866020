package notify

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	TaskTypeEmail = "notify:email"
	EmailQueue    = "email"
)

// QueueSender enqueues messages as asynq tasks for cmd/mailer.
type QueueSender struct {
	client *asynq.Client
}

var _ Sender = (*QueueSender)(nil)

func NewQueueSender(redisURL string) (*QueueSender, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "[NewQueueSender] parse redis url")
	}
	return &QueueSender{client: asynq.NewClient(opt)}, nil
}

// NewEmailTask wraps msg in the task consumed by the mailer worker.
func NewEmailTask(msg Message) (*asynq.Task, error) {
	if msg.To == "" {
		return nil, errors.New("[NewEmailTask] recipient is required")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "[NewEmailTask] encode message")
	}
	return asynq.NewTask(TaskTypeEmail, body, asynq.Queue(EmailQueue), asynq.MaxRetry(5)), nil
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	task, err := NewEmailTask(msg)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return errors.Wrap(err, "[QueueSender.Send] enqueue")
	}
	log.Debug().Str("task_id", info.ID).Str("kind", string(msg.Kind)).Msg("email queued")
	return nil
}

func (q *QueueSender) Close() error {
	return q.client.Close()
}

// HandleEmailTask decodes a queued message and passes it to deliver.
func HandleEmailTask(deliver Sender) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var msg Message
		if err := json.Unmarshal(task.Payload(), &msg); err != nil {
			return errors.Wrapf(asynq.SkipRetry, "[HandleEmailTask] decode %s payload: %v", TaskTypeEmail, err)
		}
		return deliver.Send(ctx, msg)
	}
}
