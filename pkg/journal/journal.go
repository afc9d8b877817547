// 文件: pkg/journal/journal.go
// 资金/持仓流水
//
// 撮合核心提交后, 每笔成交和撤单拆成带幂等键的流水事件发 Kafka,
// 由独立的写入器落库. 账本本身已经是权威状态, 流水是审计视角

package journal

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stex.com/pkg/exchange"
	"stex.com/pkg/kafka"
	"stex.com/pkg/ledger"
)

const TopicJournalEvents = "journal_events"

// 流水类型
const (
	ChangeTrade  = "trade"  // 成交: 现金/持仓互换
	ChangeCancel = "cancel" // 撤单: 预留资源退回
)

// JournalEvent 一条流水
// EventID 全局唯一, 落库时作为幂等键; Symbol 为空表示现金腿
type JournalEvent struct {
	EventID   int64  `json:"event_id"`
	AccountID string `json:"account_id"`
	Symbol    string `json:"symbol"`
	Change    string `json:"change"`
	Amount    int64  `json:"amount"` // 正负都有; 现金腿单位是分
	BizID     int64  `json:"biz_id"` // 成交号或订单号
	CreatedAt int64  `json:"created_at"`
}

// kafka.Message 实现

func (e *JournalEvent) Topic() string { return TopicJournalEvents }

// Key 按账户分区, 同一账户的流水保序
func (e *JournalEvent) Key() string { return e.AccountID }

func (e *JournalEvent) Value() ([]byte, error) { return json.Marshal(e) }

// =============================================================================
// Publisher - 把撮合回调拆成流水事件
// =============================================================================

type Publisher struct {
	producer *kafka.Producer
}

func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// Attach 挂到交易核心的回调上
func (p *Publisher) Attach(ex *exchange.Exchange) {
	ex.OnFill(p.publishFill)
	ex.OnCancel(p.publishCancel)
}

// publishFill 一笔成交四条腿: 卖方收现金, 买方收股票,
// 买卖双方在下单时已扣过预留, 这里只记入账腿加上双方的出账腿
func (p *Publisher) publishFill(fill exchange.Fill) {
	cash := fill.Qty * fill.Price
	events := []*JournalEvent{
		{AccountID: fill.Seller, Symbol: "", Change: ChangeTrade, Amount: cash, BizID: fill.TradeID},
		{AccountID: fill.Seller, Symbol: fill.Symbol, Change: ChangeTrade, Amount: -fill.Qty, BizID: fill.TradeID},
		{AccountID: fill.Buyer, Symbol: fill.Symbol, Change: ChangeTrade, Amount: fill.Qty, BizID: fill.TradeID},
		{AccountID: fill.Buyer, Symbol: "", Change: ChangeTrade, Amount: -cash, BizID: fill.TradeID},
	}
	p.send(events, fill.Time)
}

// publishCancel 撤单退回一条腿
func (p *Publisher) publishCancel(notice exchange.CancelNotice) {
	ev := &JournalEvent{
		AccountID: notice.AccountID,
		Change:    ChangeCancel,
		BizID:     notice.OrderID,
	}
	if notice.Side == ledger.SideSell {
		ev.Symbol = notice.Symbol
		ev.Amount = notice.Shares
	} else {
		ev.Amount = notice.Shares * notice.Price
	}
	p.send([]*JournalEvent{ev}, notice.Time)
}

func (p *Publisher) send(events []*JournalEvent, ts int64) {
	if ts == 0 {
		ts = time.Now().Unix()
	}
	for _, ev := range events {
		ev.EventID = exchange.NextTradeID()
		ev.CreatedAt = ts
		if err := p.producer.Send(ev); err != nil {
			log.Printf("[Journal] send failed: account=%s, biz_id=%d, err=%v", ev.AccountID, ev.BizID, err)
		}
	}
}

// Decode 反序列化一条流水 (写入器和测试用)
func Decode(value []byte) (*JournalEvent, error) {
	var ev JournalEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return nil, fmt.Errorf("decode journal event: %w", err)
	}
	return &ev, nil
}
