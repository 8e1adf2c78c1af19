package mqtt

import (
	"encoding/json"

	"go.uber.org/zap"
)

// QueueNotifier publishes a small "job queued" message so idle print
// agents can skip the rest of their poll backoff. Delivery is best effort;
// the queue never depends on it.
type QueueNotifier struct {
	client *Client
	topic  string
	logger *zap.Logger
}

func NewQueueNotifier(client *Client, topic string, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{client: client, topic: topic, logger: logger}
}

func (n *QueueNotifier) JobQueued(jobID, jobType string) {
	payload, _ := json.Marshal(map[string]string{
		"print_job_id": jobID,
		"job_type":     jobType,
	})
	if err := n.client.Publish(n.topic, 0, false, payload); err != nil {
		n.logger.Warn("print job wakeup publish failed",
			zap.String("print_job_id", jobID), zap.Error(err))
	}
}
