// 文件: pkg/dispatch/dispatcher.go
// 命令分发与响应重组
//
// 一个批次共享一个会话账户。账户不存在整批中止 (批次级错误, 不产生片段);
// 通过后每条命令领一个提交序号, 丢进有界工作池并发执行, 结果片段按序号
// 写进固定位置的切片 —— 不存在共享可变缓冲, 也就不需要为它加锁。
// 单条命令失败 (含 panic) 只影响自己的片段, 兄弟命令照常执行

package dispatch

import (
	"context"
	"log"
	"strconv"
	"sync"

	"stex.com/pkg/exchange"
	"stex.com/pkg/ledger"
	"stex.com/pkg/wire"
)

// Config 分发器配置
type Config struct {
	Workers int // 工作池大小
}

func DefaultConfig() Config {
	return Config{Workers: 4}
}

type Dispatcher struct {
	ex      *exchange.Exchange
	workers int
}

func New(ex *exchange.Exchange, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Dispatcher{ex: ex, workers: cfg.Workers}
}

// Dispatch 执行一个批次, 返回按提交顺序排列的响应片段
// 账户不存在返回 ledger.ErrAccountNotFound, 调用方负责传给传输层
func (d *Dispatcher) Dispatch(ctx context.Context, batch *wire.Batch) ([]wire.Fragment, error) {
	exists, err := d.ex.Store().AccountExists(ctx, batch.Account)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledger.ErrAccountNotFound
	}

	fragments := make([]wire.Fragment, len(batch.Commands))
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup

	for i, cmd := range batch.Commands {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, cmd wire.Command) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				// 命令边界兜底: 意外失败转成通用错误片段, 不中止批次
				if r := recover(); r != nil {
					log.Printf("[Dispatch] command %d panic: %v", idx, r)
					fragments[idx] = failureFragment(cmd)
				}
			}()
			fragments[idx] = d.runCommand(ctx, batch.Account, cmd)
		}(i, cmd)
	}
	wg.Wait()

	return fragments, nil
}

// runCommand 执行单条命令, 恒定返回一个片段
func (d *Dispatcher) runCommand(ctx context.Context, accountID string, cmd wire.Command) wire.Fragment {
	switch c := cmd.(type) {
	case wire.PlaceOrder:
		return d.runPlace(ctx, accountID, c)
	case wire.Cancel:
		return d.runCancel(ctx, accountID, c)
	case wire.Query:
		return d.runQuery(ctx, accountID, c)
	default:
		return wire.ErrorFragment{Reason: "Invalid request"}
	}
}

func (d *Dispatcher) runPlace(ctx context.Context, accountID string, c wire.PlaceOrder) wire.Fragment {
	placed, err := d.ex.PlaceOrder(ctx, exchange.OrderRequest{
		AccountID: accountID,
		Symbol:    c.Sym,
		Amount:    c.Amount,
		Limit:     c.Limit,
	})
	if err != nil {
		return wire.ErrorFragment{
			Sym:    c.Sym,
			Amount: c.Amount,
			Limit:  c.Limit,
			Reason: exchange.Reason(err),
		}
	}
	return wire.Opened{
		ID:     placed.OrderID,
		Sym:    placed.Symbol,
		Amount: placed.Qty,
		Limit:  ledger.FormatPrice(placed.Price),
	}
}

func (d *Dispatcher) runCancel(ctx context.Context, accountID string, c wire.Cancel) wire.Fragment {
	orderID, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return wire.ErrorFragment{ID: c.ID, Reason: "Order does not exist"}
	}

	status, err := d.ex.Cancel(ctx, accountID, orderID)
	if err != nil {
		return wire.ErrorFragment{ID: c.ID, Reason: exchange.Reason(err)}
	}

	frag := wire.Canceled{ID: orderID, Executed: executedLines(status)}
	if status.Canceled != nil {
		frag.Record = wire.CanceledLine{
			Shares: status.Canceled.Shares,
			Time:   status.Canceled.Time,
		}
	}
	return frag
}

func (d *Dispatcher) runQuery(ctx context.Context, accountID string, c wire.Query) wire.Fragment {
	orderID, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return wire.ErrorFragment{ID: c.ID, Reason: "Order does not exist"}
	}

	status, err := d.ex.Query(ctx, accountID, orderID)
	if err != nil {
		return wire.ErrorFragment{ID: c.ID, Reason: exchange.Reason(err)}
	}

	frag := wire.Status{ID: orderID, Executed: executedLines(status)}
	if status.Canceled != nil {
		frag.Canceled = &wire.CanceledLine{
			Shares: status.Canceled.Shares,
			Time:   status.Canceled.Time,
		}
	} else if status.Open != nil {
		frag.Open = &wire.OpenLine{Shares: *status.Open}
	}
	return frag
}

func executedLines(status *exchange.OrderStatus) []wire.ExecutedLine {
	lines := make([]wire.ExecutedLine, 0, len(status.Executions))
	for _, ex := range status.Executions {
		lines = append(lines, wire.ExecutedLine{
			Shares: ex.Shares,
			Price:  ledger.FormatPrice(ex.Price),
			Time:   ex.Time,
		})
	}
	return lines
}

// failureFragment 意外失败时的通用错误片段, 回显命令自身的标识属性
func failureFragment(cmd wire.Command) wire.Fragment {
	switch c := cmd.(type) {
	case wire.PlaceOrder:
		return wire.ErrorFragment{
			Sym:    c.Sym,
			Amount: c.Amount,
			Limit:  c.Limit,
			Reason: "Unable to update record",
		}
	case wire.Cancel:
		return wire.ErrorFragment{ID: c.ID, Reason: "Unable to cancel order"}
	case wire.Query:
		return wire.ErrorFragment{ID: c.ID, Reason: "Unable to query order"}
	default:
		return wire.ErrorFragment{Reason: "Invalid request"}
	}
}
