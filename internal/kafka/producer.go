package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-deals/internal/config"
	"ms-deals/internal/logger"
	"ms-deals/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds how long a publish can hold up the request that caused it.
const DefaultPublishTimeout = 2 * time.Second

type Producer struct {
	Writer  MessageWriter
	Topics  config.TopicConfig
	Logger  *logger.Logger
	Timeout time.Duration
	now     func() time.Time
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           DefaultPublishTimeout,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log, Timeout: DefaultPublishTimeout, now: time.Now}
}

// Publish writes one message within Timeout. The write outlives a cancelled request, since
// the change it announces is already committed. Delivery failures are returned; callers on
// the request path use the Deal*/Redemption* helpers, which only log.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

func (p *Producer) publishJSON(ctx context.Context, topic, key string, event interface{}) {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Failed to marshal event for %s: %v", topic, err))
		return
	}
	if err := p.Publish(ctx, topic, key, msgBytes); err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s: %v", topic, err))
		return
	}
	p.Logger.LogKafka("PUBLISH", topic, key)
}

func (p *Producer) dealEvent(kind string, deal *models.Deal) models.DealEvent {
	ev := models.DealEvent{
		Type:       kind,
		DealID:     deal.ID,
		MerchantID: deal.MerchantID,
		ShortCode:  deal.ShortCode,
		OccurredAt: p.now().UTC(),
	}
	if deal.RepostedFromID != nil {
		ev.SourceID = *deal.RepostedFromID
	}
	return ev
}

func (p *Producer) DealCreated(ctx context.Context, deal *models.Deal) {
	p.publishJSON(ctx, p.Topics.DealCreated, deal.ID, p.dealEvent("deal.created", deal))
}

func (p *Producer) DealUpdated(ctx context.Context, deal *models.Deal) {
	p.publishJSON(ctx, p.Topics.DealUpdated, deal.ID, p.dealEvent("deal.updated", deal))
}

func (p *Producer) DealReposted(ctx context.Context, deal *models.Deal) {
	p.publishJSON(ctx, p.Topics.DealReposted, deal.ID, p.dealEvent("deal.reposted", deal))
}

func (p *Producer) redemptionEvent(kind string, r *models.Redemption, merchantID string) models.RedemptionEvent {
	return models.RedemptionEvent{
		Type:         kind,
		RedemptionID: r.ID,
		DealID:       r.DealID,
		MerchantID:   merchantID,
		Code:         r.Code,
		RedeemedAt:   r.RedeemedAt,
		OccurredAt:   p.now().UTC(),
	}
}

func (p *Producer) RedemptionIssued(ctx context.Context, r *models.Redemption, merchantID string) {
	p.publishJSON(ctx, p.Topics.RedemptionIssued, r.DealID, p.redemptionEvent("redemption.issued", r, merchantID))
}

func (p *Producer) RedemptionConfirmed(ctx context.Context, r *models.Redemption, merchantID string) {
	p.publishJSON(ctx, p.Topics.RedemptionConfirmed, r.DealID, p.redemptionEvent("redemption.confirmed", r, merchantID))
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopPublisher is installed when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) DealCreated(context.Context, *models.Deal)                       {}
func (NopPublisher) DealUpdated(context.Context, *models.Deal)                       {}
func (NopPublisher) DealReposted(context.Context, *models.Deal)                      {}
func (NopPublisher) RedemptionIssued(context.Context, *models.Redemption, string)    {}
func (NopPublisher) RedemptionConfirmed(context.Context, *models.Redemption, string) {}
