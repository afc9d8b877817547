// 文件: pkg/kafka/consumer.go
// Kafka 消费者组封装

package kafka

import (
	"context"
	"fmt"
	"log"

	"github.com/IBM/sarama"
)

// Handler 消费回调, 返回错误不会中断消费, 由实现方自行兜底
type Handler func(topic string, key, value []byte) error

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// Consumer 消费者组封装, Start 后持续拉取直到 ctx 取消
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler Handler
}

func NewConsumer(cfg ConsumerConfig, handler Handler) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return &Consumer{group: group, topics: cfg.Topics, handler: handler}, nil
}

// Start 阻塞消费, rebalance 后自动重新进入
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			log.Printf("[Kafka] consumer group error: %v", err)
		}
	}()

	for {
		if err := c.group.Consume(ctx, c.topics, &groupHandler{handler: c.handler}); err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

// groupHandler 实现 sarama.ConsumerGroupHandler
type groupHandler struct {
	handler Handler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handler(msg.Topic, msg.Key, msg.Value); err != nil {
			log.Printf("[Kafka] handle failed: topic=%s, partition=%d, offset=%d, err=%v",
				msg.Topic, msg.Partition, msg.Offset, err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
