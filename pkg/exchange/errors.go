// 文件: pkg/exchange/errors.go
// 交易核心错误分类
//
// 批次级错误 (整批中止): wire.ErrMalformedRequest, ledger.ErrAccountNotFound
// 命令级错误 (只影响单条命令, 产生 error 片段): 这里的全部

package exchange

import (
	"errors"

	"stex.com/pkg/ledger"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrLedgerUpdate  = errors.New("unable to update record")
	ErrMatchFailed   = errors.New("unable to match order")
)

// Reason 把错误翻译成响应片段里的原因文本
// 未识别的错误一律归为账本更新失败, 不向外泄露内部细节
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "Invalid amount"
	case errors.Is(err, ErrInvalidLimit):
		return "Invalid limit"
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "Shares of symbol not enough"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "Insufficient funds"
	case errors.Is(err, ledger.ErrOrderNotFound):
		return "Order does not exist"
	case errors.Is(err, ledger.ErrOrderClosed):
		return "Order is complete, nothing to cancel"
	case errors.Is(err, ErrMatchFailed):
		return "Unable to match order"
	default:
		return "Unable to update record"
	}
}
