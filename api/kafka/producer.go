package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"canvasConverter/api/models"
)

// Producer publishes a summary event for every finished batch.
type Producer interface {
	SendBatchEvent(ctx context.Context, topic string, batch *models.Batch) error
	Close() error
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewFromSync(p), nil
}

func NewFromSync(p sarama.SyncProducer) Producer {
	return &producer{producer: p}
}

func (p *producer) SendBatchEvent(ctx context.Context, topic string, batch *models.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(batch.ID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}

// NopProducer drops events. It is used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) SendBatchEvent(context.Context, string, *models.Batch) error { return nil }

func (NopProducer) Close() error { return nil }
