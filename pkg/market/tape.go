// 文件: pkg/market/tape.go
// 成交行情带
//
// 最新成交写 Redis, 查询方直接读:
// - ticker:{symbol} Hash 保存最新价/量/时间
// - trades:{symbol} List 保留最近 100 笔

package market

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"stex.com/pkg/exchange"
	"stex.com/pkg/ledger"
)

const tradeHistoryLen = 100

// Tape 行情带
type Tape struct {
	client *redis.Client
}

func NewTape(addr string) *Tape {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Tape{client: rdb}
}

// Attach 挂到交易核心的成交回调上
func (t *Tape) Attach(ex *exchange.Exchange) {
	ex.OnFill(func(fill exchange.Fill) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := t.RecordFill(ctx, fill); err != nil {
			log.Printf("[Market] record fill failed: symbol=%s, err=%v", fill.Symbol, err)
		}
	})
}

// Trade 行情里的一笔成交
type Trade struct {
	Price string `json:"price"`
	Qty   int64  `json:"qty"`
	Time  int64  `json:"time"`
}

// RecordFill 写入一笔成交, pipeline 一次往返
func (t *Tape) RecordFill(ctx context.Context, fill exchange.Fill) error {
	trade := Trade{
		Price: ledger.FormatPrice(fill.Price),
		Qty:   fill.Qty,
		Time:  fill.Time,
	}
	data, err := json.Marshal(trade)
	if err != nil {
		return err
	}

	tickerKey := "ticker:" + fill.Symbol
	tradesKey := "trades:" + fill.Symbol

	pipe := t.client.Pipeline()
	pipe.HSet(ctx, tickerKey, map[string]any{
		"price": trade.Price,
		"qty":   strconv.FormatInt(trade.Qty, 10),
		"time":  strconv.FormatInt(trade.Time, 10),
	})
	pipe.LPush(ctx, tradesKey, data)
	pipe.LTrim(ctx, tradesKey, 0, tradeHistoryLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

// LastTrade 返回最新成交, 没有成交过返回 nil
func (t *Tape) LastTrade(ctx context.Context, symbol string) (*Trade, error) {
	fields, err := t.client.HGetAll(ctx, "ticker:"+symbol).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	qty, _ := strconv.ParseInt(fields["qty"], 10, 64)
	ts, _ := strconv.ParseInt(fields["time"], 10, 64)
	return &Trade{Price: fields["price"], Qty: qty, Time: ts}, nil
}

// RecentTrades 返回最近 n 笔成交, 新的在前
func (t *Tape) RecentTrades(ctx context.Context, symbol string, n int64) ([]Trade, error) {
	items, err := t.client.LRange(ctx, "trades:"+symbol, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	trades := make([]Trade, 0, len(items))
	for _, item := range items {
		var trade Trade
		if err := json.Unmarshal([]byte(item), &trade); err != nil {
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func (t *Tape) Close() error {
	return t.client.Close()
}
