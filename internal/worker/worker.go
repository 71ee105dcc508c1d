package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/internal/models"
	"github.com/chapterhub/backend/pkg/queue"
)

// NotificationProcessor consumes notification jobs and records delivery in
// notification_logs. Dispatch is decoupled from the state machines that
// enqueue it: a failed delivery never rolls back a transition.
type NotificationProcessor struct {
	pool   *pgxpool.Pool
	queue  *queue.Queue
	sender Sender
	logger *zap.Logger
}

// Sender delivers one notification to its recipient, e.g. over email or
// push. A nil sender logs deliveries without sending.
type Sender interface {
	Send(ctx context.Context, payload queue.NotificationPayload) error
}

// NewNotificationProcessor creates a notification worker.
func NewNotificationProcessor(pool *pgxpool.Pool, q *queue.Queue, sender Sender, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{pool: pool, queue: q, sender: sender, logger: logger}
}

// Process executes one notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeNotification {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	log := &models.NotificationLog{
		OrganizationID: payload.OrganizationID,
		RecipientID:    payload.RecipientID,
		Kind:           payload.Kind,
		Subject:        payload.Subject,
		Status:         "sent",
	}
	var sendErr error
	if p.sender != nil {
		sendErr = p.sender.Send(ctx, payload)
	}
	now := time.Now().UTC()
	if sendErr != nil {
		log.Status = "failed"
		log.Error = sendErr.Error()
	} else {
		log.SentAt = &now
	}

	const q = `INSERT INTO notification_logs (id, organization_id, recipient_id, kind, subject, status, error, sent_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)`
	if _, err := p.pool.Exec(ctx, q, log.OrganizationID, log.RecipientID, log.Kind, log.Subject,
		log.Status, log.Error, log.SentAt); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	if sendErr != nil {
		return fmt.Errorf("send notification: %w", sendErr)
	}
	p.logger.Debug("notification delivered",
		zap.String("kind", payload.Kind),
		zap.String("recipient_id", payload.RecipientID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
