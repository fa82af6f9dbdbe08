// Package eventbridge exports broadcast execution events to external systems.
package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"mediaflow/internal/config"
	"mediaflow/internal/events"
	"mediaflow/internal/logging"
)

const (
	headerEventType   = "mediaflow-event-type"
	headerExecutionID = "mediaflow-execution-id"

	// MaxBatch caps how many queued events go out in one write.
	MaxBatch = 64
	// BatchTimeout bounds how long kafka-go holds a partial batch.
	BatchTimeout = 10 * time.Millisecond
)

// ErrObserverDropped is returned by Run when the broadcaster removed the
// forwarder because it fell behind.
var ErrObserverDropped = errors.New("event observer dropped by broadcaster")

// MessageWriter is the kafka-go writer surface the forwarder uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaForwarder subscribes to a broadcaster like any other observer and
// writes each event as JSON to a Kafka topic keyed by execution id.
type KafkaForwarder struct {
	writer      MessageWriter
	broadcaster *events.Broadcaster
	logger      *slog.Logger
	timeout     time.Duration
}

// NewKafkaForwarder builds a forwarder for the configured brokers and topic.
func NewKafkaForwarder(cfg *config.Config, broadcaster *events.Broadcaster, logger *slog.Logger) *KafkaForwarder {
	return NewKafkaForwarderWithWriter(NewKafkaWriter(cfg), broadcaster, logger)
}

// NewKafkaWriter returns the synchronous writer used for event export.
// kafka-go holds a partial batch until BatchTimeout, so the default of one
// second would cap a synchronous writer at one write per second.
func NewKafkaWriter(cfg *config.Config) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Events.KafkaBrokers...),
		Topic:                  cfg.Events.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              MaxBatch,
		BatchTimeout:           BatchTimeout,
	}
}

// NewKafkaForwarderWithWriter allows injecting the writer (used in tests).
func NewKafkaForwarderWithWriter(writer MessageWriter, broadcaster *events.Broadcaster, logger *slog.Logger) *KafkaForwarder {
	return &KafkaForwarder{
		writer:      writer,
		broadcaster: broadcaster,
		logger:      logging.NewComponentLogger(logger, "eventbridge"),
		timeout:     10 * time.Second,
	}
}

// Run forwards events until ctx ends, the broadcaster closes, or a write
// fails. A failure unsubscribes only this forwarder. The writer is closed
// on return.
func (f *KafkaForwarder) Run(ctx context.Context) error {
	ch, unsubscribe := f.broadcaster.Subscribe(0)
	defer unsubscribe()
	defer func() {
		if err := f.writer.Close(); err != nil {
			f.logger.Warn("kafka writer close failed", logging.Error(err))
		}
	}()

	f.logger.Info("forwarding execution events to kafka")
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrObserverDropped
			}
			batch, closed := drain(ch, evt)
			if err := f.forward(ctx, batch); err != nil {
				logging.WarnWithContext(f.logger, "kafka event export stopped", "event_export_failed",
					logging.Int64(logging.FieldExecutionID, evt.ExecutionID),
					logging.String("type", string(evt.Type)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check events.kafka_brokers and broker health"),
					logging.String(logging.FieldImpact, "events are no longer exported; executions continue"),
				)
				return err
			}
			if closed {
				if ctx.Err() != nil {
					return nil
				}
				return ErrObserverDropped
			}
		}
	}
}

// drain collects first plus any events already queued, up to MaxBatch.
// closed reports that the channel was closed while draining.
func drain(ch <-chan events.Event, first events.Event) (batch []events.Event, closed bool) {
	batch = append(batch, first)
	for len(batch) < MaxBatch {
		select {
		case evt, ok := <-ch:
			if !ok {
				return batch, true
			}
			batch = append(batch, evt)
		default:
			return batch, false
		}
	}
	return batch, false
}

func (f *KafkaForwarder) forward(ctx context.Context, batch []events.Event) error {
	msgs := make([]kafkago.Message, 0, len(batch))
	for _, evt := range batch {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		key := strconv.FormatInt(evt.ExecutionID, 10)
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(key),
			Value: payload,
			Headers: []kafkago.Header{
				{Key: headerEventType, Value: []byte(evt.Type)},
				{Key: headerExecutionID, Value: []byte(key)},
			},
		})
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()
	if err := f.writer.WriteMessages(writeCtx, msgs...); err != nil {
		return fmt.Errorf("write %d kafka messages: %w", len(msgs), err)
	}
	return nil
}
