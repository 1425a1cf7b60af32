package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"companydir/internal/model"
)

var jsonMarshal = json.Marshal

type EventType string

const CompanyCreated EventType = "company_created"

// Event is the message value written to the company topic.
type Event struct {
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Company    *model.Company `json:"company"`
}

// Publisher emits company lifecycle events without blocking the caller.
type Publisher interface {
	Publish(eventType EventType, company *model.Company)
	Close() error
}

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(EventType, *model.Company) {}
func (Nop) Close() error                      { return nil }

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues events in memory and writes them to Kafka from a single
// background goroutine. Events are dropped, with a warning, when the queue is
// full or the producer is closed. Every event Publish accepts is written
// before Close returns.
type Producer struct {
	writer       KafkaWriter
	events       chan Event
	logger       *zap.Logger
	closeChan    chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration

	// mu orders enqueues against Close; closed is set under the write lock.
	mu     sync.RWMutex
	closed bool
}

const queueSize = 1000

// NewProducer builds a producer for topic. Brokers are dialed lazily on the first write.
func NewProducer(brokers []string, logger *zap.Logger, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		Topic:                  topic,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}, logger)
}

func newProducer(w KafkaWriter, logger *zap.Logger) *Producer {
	p := &Producer{
		writer:       w,
		events:       make(chan Event, queueSize),
		logger:       logger.Named("kafka_producer"),
		closeChan:    make(chan struct{}),
		done:         make(chan struct{}),
		writeTimeout: 10 * time.Second,
	}
	go p.eventLoop()
	return p
}

var _ Publisher = (*Producer)(nil)

func (p *Producer) Publish(eventType EventType, company *model.Company) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("Kafka producer closed, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("company_id", company.ID),
		)
		return
	}

	select {
	case p.events <- Event{Type: eventType, OccurredAt: time.Now().UTC(), Company: company}:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("company_id", company.ID),
		)
	}
}

func (p *Producer) eventLoop() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.sendEvent(event)
		case <-p.closeChan:
			// flush what was queued before Close
			for {
				select {
				case event := <-p.events:
					p.sendEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Producer) sendEvent(event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("company_id", event.Company.ID),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Company.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("company_id", event.Company.ID),
		)
		return
	}
	p.logger.Debug("event produced",
		zap.String("event_type", string(event.Type)),
		zap.String("company_id", event.Company.ID),
	)
}

// Close flushes queued events and closes the writer. Safe to call more than once.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.closeChan)
		p.mu.Unlock()

		<-p.done
		if err = p.writer.Close(); err != nil {
			p.logger.Error("Failed to close Kafka writer", zap.Error(err))
		}
	})
	return err
}
