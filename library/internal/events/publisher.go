package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/service"
	cb "github.com/booktrack/library-service/pkg/circuit_breaker"
	"github.com/booktrack/library-service/pkg/kafka"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrProducerBusy means the producer input buffer is full and the event was dropped.
	ErrProducerBusy = errors.New("kafka producer input is full")
	errClosed       = errors.New("publisher is closed")
)

// Publisher queues loan events on an async kafka producer. It is a service.Observer.
// Sends never wait on the broker: delivery results come back on the producer
// channels and feed the circuit breaker.
type Publisher struct {
	producer sarama.AsyncProducer
	breaker  cb.CircuitBreaker
	topic    string
	now      func() time.Time
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ service.Observer = (*Publisher)(nil)

func DefaultBreakerSettings() cb.Settings {
	return cb.Settings{
		Window:            10,
		Cooldown:          30 * time.Second,
		FailureRatio:      0.5,
		HalfOpenSuccesses: 2,
	}
}

// NewPublisher starts draining the producer's Successes and Errors. Close stops it.
func NewPublisher(producer sarama.AsyncProducer, breaker cb.CircuitBreaker, log *zap.Logger) *Publisher {
	p := &Publisher{
		producer: producer,
		breaker:  breaker,
		topic:    kafka.LoanEventsTopic,
		now:      time.Now,
		log:      log.Named("events"),
		done:     make(chan struct{}),
	}
	go p.drain()
	return p
}

func (p *Publisher) LoanCreated(_ context.Context, loan model.Loan) error {
	return p.publish(kafka.EventLoanCreated, loan)
}

func (p *Publisher) LoanReturned(_ context.Context, loan model.Loan) error {
	return p.publish(kafka.EventLoanReturned, loan)
}

func (p *Publisher) LoansMarkedOverdue(_ context.Context, loans []model.Loan) error {
	for i, loan := range loans {
		if err := p.publish(kafka.EventLoanOverdue, loan); err != nil {
			return errors.Wrapf(err, "%d of %d overdue events not queued", len(loans)-i, len(loans))
		}
	}
	return nil
}

// BookAdded is not published, the topic carries loan events only.
func (p *Publisher) BookAdded(context.Context, model.Book) error { return nil }

func (p *Publisher) UserRegistered(context.Context, model.User) error { return nil }

func (p *Publisher) publish(typ kafka.EventType, loan model.Loan) error {
	msg, err := p.message(typ, loan)
	if err != nil {
		return err
	}
	return p.send(msg)
}

func (p *Publisher) message(typ kafka.EventType, loan model.Loan) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(kafka.EventLoan{
		ID:        uuid.NewString(),
		Type:      typ,
		LoanID:    loan.ID,
		UserID:    loan.UserID,
		BookID:    loan.BookID,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	// keyed by book so the events of one copy stay ordered
	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(loan.BookID, 10)),
		Value: sarama.ByteEncoder(data),
	}, nil
}

func (p *Publisher) send(msg *sarama.ProducerMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}
	if err := p.breaker.Allow(); err != nil {
		return err
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	default:
		p.breaker.Done(ErrProducerBusy)
		return ErrProducerBusy
	}
}

func (p *Publisher) drain() {
	defer close(p.done)
	successes, failures := p.producer.Successes(), p.producer.Errors()
	for successes != nil || failures != nil {
		select {
		case msg, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			p.breaker.Done(nil)
			p.log.Debug("event sent", zap.Int32("partition", msg.Partition), zap.Int64("offset", msg.Offset))
		case perr, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			p.breaker.Done(perr.Err)
			p.log.Warn("event not delivered",
				zap.String("topic", perr.Msg.Topic),
				zap.Stringer("breaker", p.breaker.State()),
				zap.Error(perr.Err))
		}
	}
}

// Close flushes queued events and waits for their results.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	<-p.done
	return err
}
