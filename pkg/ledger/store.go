// 文件: pkg/ledger/store.go
// 账本存储接口
//
// 撮合/结算/撤单逻辑只依赖这个窄接口, 不直接碰 SQL,
// 这样核心逻辑可以在内存实现上做单元测试, 不需要真实数据库

package ledger

import (
	"context"
	"errors"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	ErrAccountNotFound    = errors.New("account does not exist")
	ErrAccountExists      = errors.New("account already exists")
	ErrOrderNotFound      = errors.New("order does not exist")
	ErrOrderClosed        = errors.New("order is complete, nothing to cancel")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("shares of symbol not enough")
	ErrUpdateFailed       = errors.New("unable to update record")
)

// =============================================================================
// Store 接口
// =============================================================================

// Store 账本存储
//
// 并发约束: 两个并发操作若读写同一账户或同一挂单, 必须互相串行
// (或冲突时中止), 静默丢失更新是正确性缺陷。
// 写操作都带守卫条件 (余额/持仓/剩余数量不够则拒绝), 保证任何已提交
// 状态下余额和持仓不为负
type Store interface {
	// InTx 在一个原子事务内执行 fn, fn 里所有读写要么全部生效要么全部回滚。
	// fn 返回 error 即回滚
	InTx(ctx context.Context, fn func(tx Store) error) error

	// ===== 账户 =====
	CreateAccount(ctx context.Context, accountID string, balance int64) error
	AccountExists(ctx context.Context, accountID string) (bool, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// ===== 资金与持仓 =====
	AddFunds(ctx context.Context, accountID string, amount int64) error
	// DebitFunds 余额不足返回 ErrInsufficientFunds, 不产生任何变更
	DebitFunds(ctx context.Context, accountID string, amount int64) error
	AddShares(ctx context.Context, accountID, symbol string, qty int64) error
	// DebitShares 持仓不足返回 ErrInsufficientShares, 不产生任何变更。
	// 代码第一次出现时自动建仓位行
	DebitShares(ctx context.Context, accountID, symbol string, qty int64) error
	GetShares(ctx context.Context, accountID, symbol string) (int64, error)

	// ===== 挂单 =====
	// NextOrderID 原子发放该账户的下一个订单号
	NextOrderID(ctx context.Context, accountID string) (int64, error)
	InsertOpenOrder(ctx context.Context, o *OpenOrder) error
	GetOpenOrder(ctx context.Context, accountID string, orderID int64) (*OpenOrder, error)
	// ReduceOpenOrder 将挂单剩余数量减去 qty, 剩余不足返回 ErrUpdateFailed
	ReduceOpenOrder(ctx context.Context, accountID string, orderID, qty int64) error
	// CloseOpenOrder 将剩余数量清零 (撤单)
	CloseOpenOrder(ctx context.Context, accountID string, orderID int64) error
	// MatchCandidates 按价格优先、时间优先返回可与 limit 成交的对手挂单。
	// side 是想要的挂单方向: 买盘按价格降序, 卖盘按价格升序, 同价按时间先后。
	// 排除 excludeAccount 自己的挂单, 剩余数量为 0 的不算
	MatchCandidates(ctx context.Context, symbol string, side Side, limit int64, excludeAccount string) ([]*OpenOrder, error)

	// ===== 历史 =====
	// AppendClosed 追加一条历史, Seq 按该订单现有记录数派生
	AppendClosed(ctx context.Context, rec *ClosedRecord) error
	ListClosed(ctx context.Context, accountID string, orderID int64) ([]*ClosedRecord, error)
}
