// 文件: pkg/exchange/validator.go
// 订单准入校验
//
// 两步: 先校验形状 (数量非零, 限价为正), 再在事务内预留资产 ——
// 卖单立即扣持仓, 买单立即按自己的限价扣现金。
// 预留走账本的守卫式扣减, 校验失败时不产生任何账本变更

package exchange

import (
	"context"
	"math"

	"stex.com/pkg/ledger"
)

// parseOrder 解析线路字段, 把符号编码的数量转成显式方向 + 无符号数量
// 数量 × 限价的名义金额必须在 int64 内: 这里是线路数值进账本前的
// 唯一入口, 在此处卡住上界后, 后续结算/撤单的乘法都不会回绕
func parseOrder(amount, limit string) (side ledger.Side, qty, price int64, err error) {
	n, aerr := ledger.ParseAmount(amount)
	if aerr != nil || n == 0 || n == math.MinInt64 {
		return 0, 0, 0, ErrInvalidAmount
	}

	price, perr := ledger.ParsePrice(limit)
	if perr != nil || price <= 0 {
		return 0, 0, 0, ErrInvalidLimit
	}

	qty = n
	if qty < 0 {
		qty = -qty
	}
	if qty > math.MaxInt64/price {
		return 0, 0, 0, ErrInvalidAmount
	}

	if n < 0 {
		return ledger.SideSell, qty, price, nil
	}
	return ledger.SideBuy, qty, price, nil
}

// reserve 在事务内预留资产
// 卖单: 扣 qty 股持仓; 买单: 扣 qty × limit 现金 (按限价, 不是最终成交价)
func reserve(ctx context.Context, tx ledger.Store, accountID, symbol string, side ledger.Side, qty, price int64) error {
	if side == ledger.SideSell {
		return tx.DebitShares(ctx, accountID, symbol, qty)
	}
	return tx.DebitFunds(ctx, accountID, qty*price)
}
