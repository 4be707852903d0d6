package events

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/smallbiznis/revlens/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// ProducerConfig returns the producer settings used for snapshot events.
func ProducerConfig(cfg config.Config) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.AppName
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	return sc
}

// NewPublisher connects to kafka when brokers are configured and falls back to a noop publisher otherwise.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, snapshot events disabled")
		return NewNoopPublisher(), nil
	}

	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, ProducerConfig(cfg))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return producer.Close()
		},
	})

	log.Info("kafka publisher ready",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	return NewKafkaPublisher(producer, cfg.Kafka.Topic, log), nil
}
