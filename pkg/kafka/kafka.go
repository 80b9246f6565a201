package kafka

import (
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

const (
	LoanEventsTopic = "library.loans"
)

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS"`
}

func (c Config) Enabled() bool {
	return len(c.Addrs) > 0
}

type EventType string

const (
	EventLoanCreated  EventType = "LOAN_CREATED"
	EventLoanReturned EventType = "LOAN_RETURNED"
	EventLoanOverdue  EventType = "LOAN_OVERDUE"
)

type EventLoan struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	LoanID    int64     `json:"loanId"`
	UserID    int64     `json:"userId"`
	BookID    int64     `json:"bookId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAsyncProducer returns both successes and errors; the caller must drain the two channels.
func NewAsyncProducer(cfg Config) (sarama.AsyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Return.Errors = true
	defaultCfg.Producer.Timeout = 2 * time.Second
	defaultCfg.Net.DialTimeout = 2 * time.Second

	return sarama.NewAsyncProducer(cfg.Addrs, defaultCfg)
}

// CreateTopics creates missing topics, existing ones are left as is.
func CreateTopics(cfg Config, topics ...string) error {
	admin, err := sarama.NewClusterAdmin(cfg.Addrs, sarama.NewConfig())
	if err != nil {
		return errors.Wrap(err, "sarama.NewClusterAdmin")
	}
	defer admin.Close()

	existing, err := admin.ListTopics()
	if err != nil {
		return errors.Wrap(err, "ListTopics")
	}
	for _, topic := range topics {
		if _, ok := existing[topic]; ok {
			continue
		}
		if err := admin.CreateTopic(topic, &sarama.TopicDetail{
			NumPartitions:     1,
			ReplicationFactor: 1,
		}, false); err != nil {
			return errors.Wrapf(err, "CreateTopic %s", topic)
		}
	}
	return nil
}
