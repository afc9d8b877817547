// 文件: pkg/events/events.go
// 撮合事件广播
// 成交和撤单在事务提交后发到 NATS, 供行情/风控等下游订阅.
// 发布失败只记日志: 事件流是观测通道, 不影响账本正确性

package events

import (
	"log"

	"stex.com/pkg/exchange"
	"stex.com/pkg/ledger"
)

const (
	SubjectTrades   = "exchange.trades"
	SubjectCanceled = "exchange.order.canceled"
)

// Publisher 发布接口, pkg/nats.Conn 满足
type Publisher interface {
	Publish(subject string, v any) error
}

// TradeEvent 成交事件
type TradeEvent struct {
	TradeID     int64  `json:"trade_id"`
	Symbol      string `json:"symbol"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	BuyOrderID  int64  `json:"buy_order_id"`
	SellOrderID int64  `json:"sell_order_id"`
	Qty         int64  `json:"qty"`
	Price       string `json:"price"`
	Time        int64  `json:"time"`
}

// CancelEvent 撤单事件
type CancelEvent struct {
	AccountID string `json:"account_id"`
	OrderID   int64  `json:"order_id"`
	Symbol    string `json:"symbol"`
	Side      int8   `json:"side"`
	Shares    int64  `json:"shares"`
	Price     string `json:"price"`
	Time      int64  `json:"time"`
}

// Emitter 把交易核心的回调转成 NATS 事件
type Emitter struct {
	pub Publisher
}

func NewEmitter(pub Publisher) *Emitter {
	return &Emitter{pub: pub}
}

// Attach 挂到交易核心的成交/撤单回调上
func (e *Emitter) Attach(ex *exchange.Exchange) {
	ex.OnFill(e.publishFill)
	ex.OnCancel(e.publishCancel)
}

func (e *Emitter) publishFill(fill exchange.Fill) {
	ev := TradeEvent{
		TradeID:     fill.TradeID,
		Symbol:      fill.Symbol,
		Buyer:       fill.Buyer,
		Seller:      fill.Seller,
		BuyOrderID:  fill.BuyOrderID,
		SellOrderID: fill.SellOrderID,
		Qty:         fill.Qty,
		Price:       ledger.FormatPrice(fill.Price),
		Time:        fill.Time,
	}
	if err := e.pub.Publish(SubjectTrades, ev); err != nil {
		log.Printf("[Events] publish trade failed: trade_id=%d, err=%v", fill.TradeID, err)
	}
}

func (e *Emitter) publishCancel(notice exchange.CancelNotice) {
	ev := CancelEvent{
		AccountID: notice.AccountID,
		OrderID:   notice.OrderID,
		Symbol:    notice.Symbol,
		Side:      int8(notice.Side),
		Shares:    notice.Shares,
		Price:     ledger.FormatPrice(notice.Price),
		Time:      notice.Time,
	}
	if err := e.pub.Publish(SubjectCanceled, ev); err != nil {
		log.Printf("[Events] publish cancel failed: order_id=%d, err=%v", notice.OrderID, err)
	}
}
