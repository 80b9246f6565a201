package events

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/booktrack/library-service/pkg/kafka"
	"go.uber.org/zap"
)

type HandleFunc func(ctx context.Context, event kafka.EventLoan) error

// Consumer is a sarama.ConsumerGroupHandler decoding loan events.
type Consumer struct {
	handle HandleFunc
	log    *zap.Logger
	ready  chan struct{}
}

func NewConsumer(handle HandleFunc, log *zap.Logger) *Consumer {
	return &Consumer{
		handle: handle,
		log:    log.Named("consumer"),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the first session is set up.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				c.log.Warn("message channel was closed")
				return nil
			}
			var event kafka.EventLoan
			if err := json.Unmarshal(message.Value, &event); err != nil {
				c.log.Error("decode event", zap.Int64("offset", message.Offset), zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}
			if err := c.handle(session.Context(), event); err != nil {
				c.log.Error("handle event", zap.String("id", event.ID), zap.Error(err))
				continue
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// Consume runs the group until ctx is done.
func Consume(ctx context.Context, cfg kafka.Config, group string, c *Consumer) error {
	conf := sarama.NewConfig()
	conf.Consumer.Offsets.Initial = sarama.OffsetOldest
	cg, err := sarama.NewConsumerGroup(cfg.Addrs, group, conf)
	if err != nil {
		return err
	}
	defer cg.Close()

	for {
		if err := cg.Consume(ctx, []string{kafka.LoanEventsTopic}, c); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
