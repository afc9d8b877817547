// 文件: pkg/kafka/producer.go
// Kafka 异步生产者
// 流水事件量大, 走异步批量发送

package kafka

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

// Message 业务消息, 由调用方实现序列化
type Message interface {
	Topic() string
	Key() string
	Value() ([]byte, error)
}

type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	LingerMs     int
	RequiredAcks sarama.RequiredAcks
}

func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchSize:    16384,
		LingerMs:     10,
		RequiredAcks: sarama.WaitForLocal,
	}
}

// Producer 异步生产者封装
type Producer struct {
	producer sarama.AsyncProducer

	sent   atomic.Int64
	failed atomic.Int64
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = cfg.RequiredAcks
	sc.Producer.Flush.Bytes = cfg.BatchSize
	sc.Producer.Flush.Frequency = millis(cfg.LingerMs)
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	ap, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{producer: ap}
	go p.collect()
	return p, nil
}

// collect 回收发送结果, 失败只记日志不重试 (下游落库有幂等保护)
func (p *Producer) collect() {
	for {
		select {
		case _, ok := <-p.producer.Successes():
			if !ok {
				return
			}
			p.sent.Add(1)
		case err, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			p.failed.Add(1)
			log.Printf("[Kafka] send failed: topic=%s, err=%v", err.Msg.Topic, err.Err)
		}
	}
}

// Send 异步发送, 不等待结果
func (p *Producer) Send(msg Message) error {
	value, err := msg.Value()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: msg.Topic(),
		Key:   sarama.StringEncoder(msg.Key()),
		Value: sarama.ByteEncoder(value),
	}
	return nil
}

// Stats 返回累计发送成功/失败数
func (p *Producer) Stats() (sent, failed int64) {
	return p.sent.Load(), p.failed.Load()
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
