// 文件: pkg/exchange/service_test.go
// 交易核心集成测试 (内存账本)

package exchange

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stex.com/pkg/ledger"
)

// =============================================================================
// 测试辅助
// =============================================================================

func setup(t *testing.T) (*Exchange, *ledger.MemStore, context.Context) {
	t.Helper()
	store := ledger.NewMemStore()
	return New(store), store, context.Background()
}

func fund(t *testing.T, store *ledger.MemStore, acct string, balance int64, symbol string, shares int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, acct, balance))
	if shares > 0 {
		require.NoError(t, store.AddShares(ctx, acct, symbol, shares))
	}
}

func buy(sym string, qty int64, limit string) OrderRequest {
	return OrderRequest{Symbol: sym, Amount: itoa(qty), Limit: limit}
}

func sell(sym string, qty int64, limit string) OrderRequest {
	return OrderRequest{Symbol: sym, Amount: itoa(-qty), Limit: limit}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// =============================================================================
// 下单准入
// =============================================================================

func TestPlaceOrder_Validation(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "1", 100000, "SPY", 0)

	cases := []struct {
		name    string
		amount  string
		limit   string
		wantErr error
	}{
		{"zero amount", "0", "5", ErrInvalidAmount},
		{"junk amount", "abc", "5", ErrInvalidAmount},
		{"zero limit", "5", "0", ErrInvalidLimit},
		{"negative limit", "5", "-1.5", ErrInvalidLimit},
		{"junk limit", "5", "x", ErrInvalidLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := OrderRequest{AccountID: "1", Symbol: "SPY", Amount: tc.amount, Limit: tc.limit}
			_, err := ex.PlaceOrder(ctx, req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// 校验失败不消耗订单号
	req := buy("SPY", 1, "5")
	req.AccountID = "1"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), placed.OrderID)
}

// 名义金额回绕攻击: 2^32 股 × 2^32 分 的乘积在 int64 里绕回 0,
// 若不设上界, 零余额账户会以 DebitFunds(0) 混进订单簿
func TestPlaceOrder_OverflowingNotionalRejected(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "1", 0, "SPY", 0)

	cases := []struct {
		name   string
		amount string
		limit  string
	}{
		{"product wraps to zero", "4294967296", "42949672.96"},
		{"product wraps negative", "4294967296", "30000000.00"},
		{"sell side wraps too", "-4294967296", "42949672.96"},
		{"min int64 amount", "-9223372036854775808", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := OrderRequest{AccountID: "1", Symbol: "SPY", Amount: tc.amount, Limit: tc.limit}
			_, err := ex.PlaceOrder(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}

	// 账本毫无变化, 订单号也没被消耗
	a, err := store.GetAccount(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), a.Balance)
	id, _ := store.NextOrderID(ctx, "1")
	assert.Equal(t, int64(1), id)

	// 不回绕的大额订单照常走资金校验
	req := OrderRequest{AccountID: "1", Symbol: "SPY", Amount: "1000000", Limit: "10000"}
	_, err = ex.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestPlaceOrder_ReservationFailureLeavesLedgerUntouched(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "1", 1000, "SPY", 0)

	// 没有持仓却要卖
	req := sell("SPY", 5, "5")
	req.AccountID = "1"
	_, err := ex.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrInsufficientShares)

	// 现金不够买
	req = buy("SPY", 100, "100") // 需要 1,000,000 分
	req.AccountID = "1"
	_, err = ex.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// 账本毫发无损
	a, err := store.GetAccount(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), a.Balance)
	id, _ := store.NextOrderID(ctx, "1")
	assert.Equal(t, int64(1), id, "failed orders must not consume order ids")
}

// =============================================================================
// 预留
// =============================================================================

func TestPlaceOrder_ReservesUpFront(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "b", 10000, "SPY", 0)
	fund(t, store, "s", 0, "SPY", 8)

	// 买单按自己的限价预留现金
	req := buy("SPY", 5, "6")
	req.AccountID = "b"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, placed.Fills)

	a, _ := store.GetAccount(ctx, "b")
	assert.Equal(t, int64(10000-5*600), a.Balance)

	// 卖单预留股份
	req = sell("SPY", 8, "100")
	req.AccountID = "s"
	_, err = ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	qty, _ := store.GetShares(ctx, "s", "SPY")
	assert.Equal(t, int64(0), qty)
}

// =============================================================================
// 撮合与结算
// =============================================================================

// 挂着的买单 5 股 @6.00, 进来的卖单 5 股 @5.00:
// 成交价取挂单方 6.00, 卖方进账 3000 分, 买方得 5 股, 双方订单都完结
func TestMatch_FullFillAtRestingPrice(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "b", 3000, "SPY", 0)
	fund(t, store, "s", 0, "SPY", 5)

	req := buy("SPY", 5, "6")
	req.AccountID = "b"
	restingBuy, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = sell("SPY", 5, "5")
	req.AccountID = "s"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	require.Len(t, placed.Fills, 1)
	fill := placed.Fills[0]
	assert.Equal(t, int64(600), fill.Price)
	assert.Equal(t, int64(5), fill.Qty)
	assert.Equal(t, "b", fill.Buyer)
	assert.Equal(t, "s", fill.Seller)

	sAcct, _ := store.GetAccount(ctx, "s")
	assert.Equal(t, int64(3000), sAcct.Balance)
	bShares, _ := store.GetShares(ctx, "b", "SPY")
	assert.Equal(t, int64(5), bShares)

	// 双方订单都已完结, 各有一条成交历史
	for _, side := range []struct {
		acct    string
		orderID int64
	}{{"b", restingBuy.OrderID}, {"s", placed.OrderID}} {
		status, err := ex.Query(ctx, side.acct, side.orderID)
		require.NoError(t, err)
		require.Len(t, status.Executions, 1)
		assert.Equal(t, int64(600), status.Executions[0].Price)
		assert.Nil(t, status.Open)
		assert.Nil(t, status.Canceled)
	}
}

func TestMatch_PartialFill(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "b", 10000, "SPY", 0)
	fund(t, store, "s", 0, "SPY", 3)

	req := sell("SPY", 3, "5")
	req.AccountID = "s"
	_, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = buy("SPY", 5, "6")
	req.AccountID = "b"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	require.Len(t, placed.Fills, 1)
	assert.Equal(t, int64(500), placed.Fills[0].Price)
	assert.Equal(t, int64(3), placed.Fills[0].Qty)

	// 剩 2 股继续挂着
	status, err := ex.Query(ctx, "b", placed.OrderID)
	require.NoError(t, err)
	require.NotNil(t, status.Open)
	assert.Equal(t, int64(2), *status.Open)

	// 买方在下单时按限价扣满, 成交价更优也不返还差价
	a, _ := store.GetAccount(ctx, "b")
	assert.Equal(t, int64(10000-5*600), a.Balance)
	sAcct, _ := store.GetAccount(ctx, "s")
	assert.Equal(t, int64(3*500), sAcct.Balance)
}

func TestMatch_PricePriority(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "s1", 0, "SPY", 5)
	fund(t, store, "s2", 0, "SPY", 5)
	fund(t, store, "b", 10000, "SPY", 0)

	req := sell("SPY", 5, "5")
	req.AccountID = "s1"
	_, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = sell("SPY", 5, "4.9")
	req.AccountID = "s2"
	_, err = ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	// 买 6 股: 先吃 4.90 的 5 股, 再吃 5.00 的 1 股
	req = buy("SPY", 6, "6")
	req.AccountID = "b"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	require.Len(t, placed.Fills, 2)
	assert.Equal(t, "s2", placed.Fills[0].Seller)
	assert.Equal(t, int64(490), placed.Fills[0].Price)
	assert.Equal(t, int64(5), placed.Fills[0].Qty)
	assert.Equal(t, "s1", placed.Fills[1].Seller)
	assert.Equal(t, int64(500), placed.Fills[1].Price)
	assert.Equal(t, int64(1), placed.Fills[1].Qty)
}

func TestMatch_TimePriorityAtSamePrice(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "s1", 0, "SPY", 5)
	fund(t, store, "s2", 0, "SPY", 5)
	fund(t, store, "b", 10000, "SPY", 0)

	req := sell("SPY", 5, "5")
	req.AccountID = "s1"
	_, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = sell("SPY", 5, "5")
	req.AccountID = "s2"
	_, err = ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = buy("SPY", 5, "5")
	req.AccountID = "b"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	require.Len(t, placed.Fills, 1)
	assert.Equal(t, "s1", placed.Fills[0].Seller, "earlier order at same price fills first")
}

func TestMatch_NeverMatchesOwnOrders(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "1", 10000, "SPY", 5)

	req := sell("SPY", 5, "5")
	req.AccountID = "1"
	_, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = buy("SPY", 5, "5")
	req.AccountID = "1"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	assert.Empty(t, placed.Fills)
	status, err := ex.Query(ctx, "1", placed.OrderID)
	require.NoError(t, err)
	require.NotNil(t, status.Open)
	assert.Equal(t, int64(5), *status.Open)
}

// =============================================================================
// 撤单
// =============================================================================

func TestCancel_RefundsReservation(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "b", 3000, "SPY", 0)
	fund(t, store, "s", 0, "SPY", 7)

	// 买单撤销: 退限价现金
	req := buy("SPY", 5, "6")
	req.AccountID = "b"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	status, err := ex.Cancel(ctx, "b", placed.OrderID)
	require.NoError(t, err)
	require.NotNil(t, status.Canceled)
	assert.Equal(t, int64(5), status.Canceled.Shares)
	assert.Nil(t, status.Open)

	a, _ := store.GetAccount(ctx, "b")
	assert.Equal(t, int64(3000), a.Balance)

	// 卖单撤销: 退股份
	req = sell("SPY", 7, "9")
	req.AccountID = "s"
	placed, err = ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	_, err = ex.Cancel(ctx, "s", placed.OrderID)
	require.NoError(t, err)
	qty, _ := store.GetShares(ctx, "s", "SPY")
	assert.Equal(t, int64(7), qty)
}

func TestCancel_Twice(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "1", 3000, "SPY", 0)

	req := buy("SPY", 5, "6")
	req.AccountID = "1"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	_, err = ex.Cancel(ctx, "1", placed.OrderID)
	require.NoError(t, err)

	// 再撤: 订单已完结
	_, err = ex.Cancel(ctx, "1", placed.OrderID)
	assert.ErrorIs(t, err, ledger.ErrOrderClosed)

	// 余额只退一次
	a, _ := store.GetAccount(ctx, "1")
	assert.Equal(t, int64(3000), a.Balance)
}

func TestCancel_FullyExecutedOrder(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "b", 3000, "SPY", 0)
	fund(t, store, "s", 0, "SPY", 5)

	req := buy("SPY", 5, "6")
	req.AccountID = "b"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	req = sell("SPY", 5, "6")
	req.AccountID = "s"
	_, err = ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	_, err = ex.Cancel(ctx, "b", placed.OrderID)
	assert.ErrorIs(t, err, ledger.ErrOrderClosed)
}

func TestCancel_UnknownOrder(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "1", 0, "SPY", 0)

	_, err := ex.Cancel(ctx, "1", 99)
	assert.ErrorIs(t, err, ledger.ErrOrderNotFound)
}

// =============================================================================
// 查询
// =============================================================================

func TestQuery_Lifecycle(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "b", 10000, "SPY", 0)
	fund(t, store, "s", 0, "SPY", 3)

	req := buy("SPY", 5, "6")
	req.AccountID = "b"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	// 刚下单: 全部敞口
	status, err := ex.Query(ctx, "b", placed.OrderID)
	require.NoError(t, err)
	assert.Empty(t, status.Executions)
	require.NotNil(t, status.Open)
	assert.Equal(t, int64(5), *status.Open)

	// 部分成交: 一条历史 + 余量
	req = sell("SPY", 3, "6")
	req.AccountID = "s"
	_, err = ex.PlaceOrder(ctx, req)
	require.NoError(t, err)

	status, err = ex.Query(ctx, "b", placed.OrderID)
	require.NoError(t, err)
	require.Len(t, status.Executions, 1)
	assert.Equal(t, int64(3), status.Executions[0].Shares)
	require.NotNil(t, status.Open)
	assert.Equal(t, int64(2), *status.Open)

	// 撤掉余量: 历史保留, 敞口换成撤单记录
	_, err = ex.Cancel(ctx, "b", placed.OrderID)
	require.NoError(t, err)

	status, err = ex.Query(ctx, "b", placed.OrderID)
	require.NoError(t, err)
	require.Len(t, status.Executions, 1)
	assert.Nil(t, status.Open)
	require.NotNil(t, status.Canceled)
	assert.Equal(t, int64(2), status.Canceled.Shares)

	// 不存在的订单
	_, err = ex.Query(ctx, "b", 404)
	assert.ErrorIs(t, err, ledger.ErrOrderNotFound)
}

// =============================================================================
// 事件
// =============================================================================

func TestEvents_EmittedAfterCommit(t *testing.T) {
	ex, store, ctx := setup(t)
	fund(t, store, "b", 3000, "SPY", 0)
	fund(t, store, "s", 0, "SPY", 5)

	var fills []Fill
	var cancels []CancelNotice
	ex.OnFill(func(f Fill) { fills = append(fills, f) })
	ex.OnCancel(func(n CancelNotice) { cancels = append(cancels, n) })

	req := buy("SPY", 5, "6")
	req.AccountID = "b"
	_, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, fills, "no fills for a resting order")

	req = sell("SPY", 2, "6")
	req.AccountID = "s"
	placed, err := ex.PlaceOrder(ctx, req)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(2), fills[0].Qty)
	assert.NotZero(t, fills[0].TradeID)

	_, err = ex.Cancel(ctx, "s", placed.OrderID)
	require.ErrorIs(t, err, ledger.ErrOrderClosed) // 卖单已全部成交
	assert.Empty(t, cancels)
}
