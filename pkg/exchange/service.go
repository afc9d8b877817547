// 文件: pkg/exchange/service.go
// 交易核心服务 - 下单入口与事件分发
//
// 每条命令一个账本事务: 预留 → 撮合 → 逐笔结算 → 挂剩余,
// 全部成功才提交。事件 (成交/撤单) 在提交之后同步分发给已注册的
// 处理器, 处理器内部自行决定异步与否

package exchange

import (
	"context"
	"sync"
	"time"

	"stex.com/pkg/ledger"
)

type Exchange struct {
	store ledger.Store

	mu             sync.RWMutex
	fillHandlers   []func(Fill)
	cancelHandlers []func(CancelNotice)
}

func New(store ledger.Store) *Exchange {
	return &Exchange{store: store}
}

// Store 暴露底层账本 (管理路径: 建账户/入金)
func (e *Exchange) Store() ledger.Store {
	return e.store
}

// =============================================================================
// 事件注册
// =============================================================================

// OnFill 注册成交事件处理器, 提交后按注册顺序调用
func (e *Exchange) OnFill(h func(Fill)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillHandlers = append(e.fillHandlers, h)
}

// OnCancel 注册撤单事件处理器
func (e *Exchange) OnCancel(h func(CancelNotice)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelHandlers = append(e.cancelHandlers, h)
}

func (e *Exchange) emitFills(fills []Fill) {
	e.mu.RLock()
	handlers := e.fillHandlers
	e.mu.RUnlock()
	for _, f := range fills {
		for _, h := range handlers {
			h(f)
		}
	}
}

func (e *Exchange) emitCancel(n CancelNotice) {
	e.mu.RLock()
	handlers := e.cancelHandlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h(n)
	}
}

// =============================================================================
// 下单
// =============================================================================

// PlaceOrder 提交限价单
//
// 形状校验在事务外 (不碰账本), 之后单事务内:
// 预留资产 → 发订单号 → 撮合结算 → 把剩余数量 (可为 0) 挂进订单簿。
// 返回错误时账本无任何变更
func (e *Exchange) PlaceOrder(ctx context.Context, req OrderRequest) (*Placed, error) {
	side, qty, price, err := parseOrder(req.Amount, req.Limit)
	if err != nil {
		return nil, err
	}

	placed := &Placed{
		Symbol: req.Symbol,
		Side:   side,
		Qty:    qty,
		Price:  price,
	}

	err = e.store.InTx(ctx, func(tx ledger.Store) error {
		if err := reserve(ctx, tx, req.AccountID, req.Symbol, side, qty, price); err != nil {
			return err
		}

		orderID, err := tx.NextOrderID(ctx, req.AccountID)
		if err != nil {
			return err
		}
		placed.OrderID = orderID

		fills, remaining, err := match(ctx, tx, req.AccountID, orderID, req.Symbol, side, qty, price)
		if err != nil {
			return err
		}
		placed.Fills = fills

		// 全部成交也要落一行 qty=0 的挂单, 订单号从此可查
		return tx.InsertOpenOrder(ctx, &ledger.OpenOrder{
			AccountID: req.AccountID,
			OrderID:   orderID,
			Symbol:    req.Symbol,
			Side:      side,
			Qty:       remaining,
			Price:     price,
			CreatedAt: time.Now().UnixNano(),
		})
	})
	if err != nil {
		return nil, err
	}

	e.emitFills(placed.Fills)
	return placed, nil
}

// =============================================================================
// 撤单
// =============================================================================

// Cancel 撤掉挂单的剩余数量并退还预留资产
// 卖单退股, 买单按限价退现金。返回撤单后的完整订单状态
func (e *Exchange) Cancel(ctx context.Context, accountID string, orderID int64) (*OrderStatus, error) {
	var status *OrderStatus
	var notice CancelNotice

	err := e.store.InTx(ctx, func(tx ledger.Store) error {
		o, err := tx.GetOpenOrder(ctx, accountID, orderID)
		if err != nil {
			return err
		}
		if o.IsClosed() {
			return ledger.ErrOrderClosed
		}

		if err := tx.CloseOpenOrder(ctx, accountID, orderID); err != nil {
			return err
		}

		// 退还预留
		if o.Side == ledger.SideSell {
			err = tx.AddShares(ctx, accountID, o.Symbol, o.Qty)
		} else {
			err = tx.AddFunds(ctx, accountID, o.Qty*o.Price)
		}
		if err != nil {
			return err
		}

		now := time.Now().Unix()
		if err := tx.AppendClosed(ctx, &ledger.ClosedRecord{
			AccountID: accountID,
			OrderID:   orderID,
			Status:    ledger.StatusCanceled,
			Shares:    o.Qty,
			Price:     o.Price,
			Time:      now,
		}); err != nil {
			return err
		}

		notice = CancelNotice{
			AccountID: accountID,
			OrderID:   orderID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Shares:    o.Qty,
			Price:     o.Price,
			Time:      now,
		}

		status, err = loadStatus(ctx, tx, accountID, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.emitCancel(notice)
	return status, nil
}

// =============================================================================
// 查询
// =============================================================================

// Query 重建订单生命周期: 成交历史 + 未成交余量或撤单记录
func (e *Exchange) Query(ctx context.Context, accountID string, orderID int64) (*OrderStatus, error) {
	var status *OrderStatus
	err := e.store.InTx(ctx, func(tx ledger.Store) error {
		var err error
		status, err = loadStatus(ctx, tx, accountID, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// loadStatus 从挂单行和历史记录拼出订单状态
func loadStatus(ctx context.Context, tx ledger.Store, accountID string, orderID int64) (*OrderStatus, error) {
	o, err := tx.GetOpenOrder(ctx, accountID, orderID)
	if err != nil {
		return nil, err
	}

	records, err := tx.ListClosed(ctx, accountID, orderID)
	if err != nil {
		return nil, err
	}

	status := &OrderStatus{OrderID: orderID}
	for _, rec := range records {
		switch rec.Status {
		case ledger.StatusExecuted:
			status.Executions = append(status.Executions, Execution{
				Shares: rec.Shares,
				Price:  rec.Price,
				Time:   rec.Time,
			})
		case ledger.StatusCanceled:
			// 撤单记录必然是最后一条, 终结生命周期
			status.Canceled = &CancelInfo{Shares: rec.Shares, Time: rec.Time}
		}
	}

	if status.Canceled == nil && o.Qty > 0 {
		open := o.Qty
		status.Open = &open
	}
	return status, nil
}
