package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	exportMaxRetry  = 3
	exportTimeout   = 2 * time.Minute
	exportRetention = 24 * time.Hour
)

// ErrDuplicateExport means a task with the same export id is still known
// to the queue.
var ErrDuplicateExport = errors.New("export already enqueued")

// Client enqueues export tasks onto a single asynq queue.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueExportImage schedules payload under its export id, so retried
// requests with the same id collapse into one task.
func (c *Client) EnqueueExportImage(ctx context.Context, payload ExportImagePayload) (*asynq.TaskInfo, error) {
	task, err := NewExportImageTask(payload)
	if err != nil {
		return nil, err
	}

	info, err := c.client.EnqueueContext(ctx, task, exportTaskOptions(c.queue, payload.ExportID)...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateExport, payload.ExportID)
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue export %s: %w", payload.ExportID, err)
	}
	return info, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func exportTaskOptions(queueName, exportID string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queueName),
		asynq.TaskID(exportID),
		asynq.MaxRetry(exportMaxRetry),
		asynq.Timeout(exportTimeout),
		asynq.Retention(exportRetention),
	}
}
