package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/dto"
)

type Producer struct {
	client   *wbfkafka.Producer
	topic    string
	strategy retry.Strategy
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer initialized")
	return &Producer{
		client:   client,
		topic:    cfg.Topic,
		strategy: cfg.RetryStrategy(),
	}
}

// Send publishes a task keyed by transfer id so redeliveries of one
// transfer land on the same partition.
func (p *Producer) Send(ctx context.Context, task dto.TransferTask) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}
	if err := p.client.SendWithRetry(ctx, p.strategy, []byte(task.TransferID), data); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("transfer_id", task.TransferID).
			Str("topic", p.topic).
			Msg("Failed to send Kafka message")
		return fmt.Errorf("send transfer task %s: %w", task.TransferID, err)
	}
	zlog.Logger.Info().
		Str("transfer_id", task.TransferID).
		Str("topic", p.topic).
		Msg("Transfer task sent to Kafka")
	return nil
}

func (p *Producer) PublishTransferTask(ctx context.Context, transferID string) error {
	return p.Send(ctx, dto.TransferTask{TransferID: transferID})
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to close Kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("Kafka producer closed successfully")
	return nil
}

func encodeTask(task dto.TransferTask) ([]byte, error) {
	if task.TransferID == "" {
		return nil, fmt.Errorf("encode transfer task: empty transfer id")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode transfer task: %w", err)
	}
	return data, nil
}

func decodeTask(value []byte) (*dto.TransferTask, error) {
	var task dto.TransferTask
	if err := json.Unmarshal(value, &task); err != nil {
		return nil, fmt.Errorf("decode transfer task: %w", err)
	}
	if task.TransferID == "" {
		return nil, fmt.Errorf("decode transfer task: empty transfer id")
	}
	return &task, nil
}
