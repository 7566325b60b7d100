package pkg

import (
	"context"
	"os"
	"strings"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer 审计事件流出口。key 走哈希分区，
// 同一花名册的事件落同一分区，顺序由 broker 保证。
type KafkaProducer struct {
	writer *kafka.Writer
}

// KafkaConfigFromEnv 读 KAFKA_BROKERS（逗号分隔）与 KAFKA_TOPIC。
// brokers 为空表示事件流未启用，调用方按 nil producer 处理。
func KafkaConfigFromEnv() ([]string, string) {
	raw := os.Getenv("KAFKA_BROKERS")
	if raw == "" {
		return nil, ""
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "roster-events"
	}
	return strings.Split(raw, ","), topic
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *KafkaProducer) Send(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
}
