package kafka

import (
	"context"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/dto"
)

// MessageHandler processes one task. Its outcome is recorded by the handler;
// the message is committed either way.
type MessageHandler func(ctx context.Context, task *dto.TransferTask) error

type Consumer struct {
	client   *wbfkafka.Consumer
	handler  MessageHandler
	topic    string
	strategy retry.Strategy
}

func NewConsumer(cfg *config.KafkaConfig, handler MessageHandler) *Consumer {
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("Kafka consumer initialized")

	return &Consumer{
		client:   client,
		handler:  handler,
		topic:    cfg.Topic,
		strategy: cfg.RetryStrategy(),
	}
}

// Start blocks, fetching and dispatching tasks until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("Kafka consumer stopped")
			return nil
		default:
		}

		msg, err := c.client.FetchWithRetry(ctx, c.strategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			zlog.Logger.Error().Err(err).Str("topic", c.topic).Msg("Failed to fetch Kafka message")
			sleep(ctx, time.Second)
			continue
		}

		c.dispatch(ctx, msg.Value)

		if err := c.client.Commit(ctx, msg); err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("transfer_id", string(msg.Key)).
				Int64("offset", msg.Offset).
				Msg("Failed to commit message")
		}
	}
}

// dispatch decodes one message and hands it to the handler. It reports
// whether the handler succeeded. Start commits the message regardless.
func (c *Consumer) dispatch(ctx context.Context, value []byte) bool {
	task, err := decodeTask(value)
	if err != nil {
		zlog.Logger.Error().Err(err).Bytes("msg", value).Msg("Dropping malformed transfer task")
		return false
	}

	zlog.Logger.Info().Str("transfer_id", task.TransferID).Msg("Received transfer task")

	if err := c.handler(ctx, task); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("transfer_id", task.TransferID).
			Msg("Task processing failed")
		return false
	}

	zlog.Logger.Info().Str("transfer_id", task.TransferID).Msg("Task processed")
	return true
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka consumer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka consumer closed successfully")
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
