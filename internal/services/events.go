package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/peerpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Auditor receives an audit line for every money movement.
type Auditor interface {
	LogTransfer(reference string, fromAccount, toAccount int64, amount decimal.Decimal, status string)
	LogFunding(reference string, accountID int64, amount decimal.Decimal, cardLast4, status string)
	LogError(reference string, accountID int64, err error)
}

// EventPublisher announces committed records to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, rec *models.TransactionRecord)
}

// RedisEventPublisher pushes events onto a Redis list. Publishing happens
// after commit, so failures are logged and swallowed.
type RedisEventPublisher struct {
	redis *redis.Client
	queue string
	now   func() time.Time
}

func NewRedisEventPublisher(rdb *redis.Client, queue string) *RedisEventPublisher {
	return &RedisEventPublisher{
		redis: rdb,
		queue: queue,
		now:   time.Now,
	}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, rec *models.TransactionRecord) {
	if p == nil || p.redis == nil {
		return
	}
	event := models.TransactionEvent{
		Event:             "transaction." + string(rec.Status),
		Reference:         rec.Reference,
		Type:              rec.Type,
		Status:            rec.Status,
		Amount:            rec.Amount,
		Currency:          rec.Currency,
		SenderAccountID:   rec.SenderAccountID,
		ReceiverAccountID: rec.ReceiverAccountID,
		OccurredAt:        p.now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[EVENTS] Failed to encode event for %s: %v", rec.Reference, err)
		return
	}
	// The request context may already be near its deadline; the record is
	// committed either way.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.redis.RPush(pushCtx, p.queue, string(data)).Err(); err != nil {
		log.Printf("[EVENTS] Failed to publish %s: %v", rec.Reference, err)
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *models.TransactionRecord) {}
