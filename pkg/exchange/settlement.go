// 文件: pkg/exchange/settlement.go
// 结算
//
// 一笔成交涉及两个账户和一张对手挂单, 四步在同一事务内要么全做要么全不做:
// 1. 卖方 现金 += 数量 × 成交价 (卖方的股在下单时已扣)
// 2. 买方 持仓 += 数量       (买方的现金已按自己的限价扣过;
//    成交价更优时的差价不在这里返还, 与既有账务口径保持一致)
// 3. 对手挂单剩余数量 -= 数量
// 4. 买卖双方各追加一条 Executed 历史

package exchange

import (
	"context"
	"errors"

	"stex.com/pkg/ledger"
)

// settle 结算一笔成交
// cand 是本次被吃的那张对手挂单。任何一步失败都返回错误,
// 由外层事务整体回滚, 不会留下半截效果
func settle(ctx context.Context, tx ledger.Store, cand *ledger.OpenOrder, fill Fill) error {
	proceeds := fill.Qty * fill.Price

	if err := tx.AddFunds(ctx, fill.Seller, proceeds); err != nil {
		return errors.Join(ErrLedgerUpdate, err)
	}
	if err := tx.AddShares(ctx, fill.Buyer, fill.Symbol, fill.Qty); err != nil {
		return errors.Join(ErrLedgerUpdate, err)
	}
	if err := tx.ReduceOpenOrder(ctx, cand.AccountID, cand.OrderID, fill.Qty); err != nil {
		return errors.Join(ErrLedgerUpdate, err)
	}

	for _, rec := range []*ledger.ClosedRecord{
		{
			AccountID: fill.Seller,
			OrderID:   fill.SellOrderID,
			Status:    ledger.StatusExecuted,
			Shares:    fill.Qty,
			Price:     fill.Price,
			Time:      fill.Time,
		},
		{
			AccountID: fill.Buyer,
			OrderID:   fill.BuyOrderID,
			Status:    ledger.StatusExecuted,
			Shares:    fill.Qty,
			Price:     fill.Price,
			Time:      fill.Time,
		},
	} {
		if err := tx.AppendClosed(ctx, rec); err != nil {
			return errors.Join(ErrLedgerUpdate, err)
		}
	}

	return nil
}
