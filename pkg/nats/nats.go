// 文件: pkg/nats/nats.go
// NATS 消息收发封装
// 行情和订单事件走 NATS, 轻量, 本地开发不需要起 Kafka

package nats

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// MessageHandler 消息处理函数
type MessageHandler func(subject string, data []byte) error

// Conn 连接封装, 同时承担发布和订阅
type Conn struct {
	nc   *nats.Conn
	subs []*nats.Subscription
}

func Connect(url string) (*Conn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Conn{nc: nc}, nil
}

// Publish 发布 JSON 消息
func (c *Conn) Publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, data)
}

// Subscribe 订阅主题
func (c *Conn) Subscribe(subject string, handler MessageHandler) error {
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Subject, msg.Data); err != nil {
			log.Printf("[NATS] handle error: subject=%s, err=%v", msg.Subject, err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// SubscribeQueue 队列订阅 (多实例负载均衡)
func (c *Conn) SubscribeQueue(subject, queue string, handler MessageHandler) error {
	sub, err := c.nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if err := handler(msg.Subject, msg.Data); err != nil {
			log.Printf("[NATS] handle error: subject=%s, err=%v", msg.Subject, err)
		}
	})
	if err != nil {
		return err
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Close 退订并断开
func (c *Conn) Close() {
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.nc.Close()
}
