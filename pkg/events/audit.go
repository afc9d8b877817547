// 文件: pkg/events/audit.go
// 事件审计消费者 - 订阅成交/撤单事件留审计日志
// 独立于账本事务, 掉线丢事件不影响交易正确性

package events

import (
	"encoding/json"
	"fmt"
	"log"

	"stex.com/pkg/nats"
)

// Auditor 审计消费者
type Auditor struct {
	conn *nats.Conn
}

func NewAuditor(conn *nats.Conn) *Auditor {
	return &Auditor{conn: conn}
}

// Start 队列订阅两类事件 (多实例时负载均衡)
func (a *Auditor) Start() error {
	if err := a.conn.SubscribeQueue(SubjectTrades, "audit", a.handle); err != nil {
		return err
	}
	return a.conn.SubscribeQueue(SubjectCanceled, "audit", a.handle)
}

func (a *Auditor) handle(subject string, data []byte) error {
	switch subject {
	case SubjectTrades:
		var ev TradeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode trade event: %w", err)
		}
		log.Printf("[Audit] trade %d: %s %d@%s %s->%s",
			ev.TradeID, ev.Symbol, ev.Qty, ev.Price, ev.Seller, ev.Buyer)
	case SubjectCanceled:
		var ev CancelEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode cancel event: %w", err)
		}
		log.Printf("[Audit] cancel: account=%s order=%d %s shares=%d",
			ev.AccountID, ev.OrderID, ev.Symbol, ev.Shares)
	}
	return nil
}
