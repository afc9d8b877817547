// 文件: pkg/exchange/matcher.go
// 撮合
//
// 新订单进来后扫描同代码对手盘, 价格优先、时间优先:
// - 来单是卖: 候选买单按价格降序, 要求 候选价 >= 卖单限价
// - 来单是买: 候选卖单按价格升序, 要求 候选价 <= 买单限价
// 成交价永远取挂单方 (候选) 的价格, 来单不会突破自己的限价占便宜。
// 撮合和逐笔结算都在调用方的事务内完成

package exchange

import (
	"context"
	"errors"
	"time"

	"stex.com/pkg/ledger"
)

// match 撮合一张已预留资产的新订单
// 返回产生的成交列表和剩余未成交数量 (可能为 0)
func match(ctx context.Context, tx ledger.Store, accountID string, orderID int64,
	symbol string, side ledger.Side, qty, limit int64) ([]Fill, int64, error) {

	candidates, err := tx.MatchCandidates(ctx, symbol, side.Opposite(), limit, accountID)
	if err != nil {
		return nil, 0, errors.Join(ErrMatchFailed, err)
	}

	var fills []Fill
	remaining := qty

	for _, cand := range candidates {
		if remaining == 0 {
			break
		}

		fillQty := remaining
		if cand.Qty < fillQty {
			fillQty = cand.Qty
		}

		fill := Fill{
			TradeID: NextTradeID(),
			Symbol:  symbol,
			Qty:     fillQty,
			Price:   cand.Price, // 成交价 = 挂单方价格
			Time:    time.Now().Unix(),
		}
		if side == ledger.SideSell {
			fill.Seller = accountID
			fill.SellOrderID = orderID
			fill.Buyer = cand.AccountID
			fill.BuyOrderID = cand.OrderID
		} else {
			fill.Buyer = accountID
			fill.BuyOrderID = orderID
			fill.Seller = cand.AccountID
			fill.SellOrderID = cand.OrderID
		}

		if err := settle(ctx, tx, cand, fill); err != nil {
			return nil, 0, err
		}

		remaining -= fillQty
		fills = append(fills, fill)
	}

	return fills, remaining, nil
}
