// 文件: pkg/exchange/types.go
// 交易核心对外结构

package exchange

import "stex.com/pkg/ledger"

// OrderRequest 下单请求
// Amount 和 Limit 保留线路上的原始字符串, 由校验器负责解析:
// 解析失败本身就是一种业务错误 (Invalid amount / Invalid limit)
type OrderRequest struct {
	AccountID string
	Symbol    string
	Amount    string // 有符号整数, 负数 = 卖
	Limit     string // 十进制限价, 必须 > 0
}

// Placed 下单结果
// 即使全部立即成交, 订单也会拿到订单号并留下数量为 0 的挂单行,
// 供之后的状态查询使用
type Placed struct {
	OrderID int64
	Symbol  string
	Side    ledger.Side
	Qty     int64 // 原始数量 (无符号)
	Price   int64 // 限价 (分)
	Fills   []Fill
}

// Fill 一次撮合成交
// 买卖双方各生成一条 Executed 历史, Shares/Price 相同
type Fill struct {
	TradeID     int64
	Symbol      string
	Buyer       string
	Seller      string
	BuyOrderID  int64
	SellOrderID int64
	Qty         int64
	Price       int64 // 成交价 = 挂单方价格
	Time        int64 // Unix 秒
}

// CancelNotice 撤单通知 (事件用)
type CancelNotice struct {
	AccountID string
	OrderID   int64
	Symbol    string
	Side      ledger.Side
	Shares    int64 // 被撤掉的剩余数量
	Price     int64
	Time      int64
}

// Execution 查询结果里的一条成交
type Execution struct {
	Shares int64
	Price  int64
	Time   int64
}

// CancelInfo 查询结果里的撤单记录
type CancelInfo struct {
	Shares int64
	Time   int64
}

// OrderStatus 订单生命周期视图
// Executions 按时间顺序; 之后要么是未成交余量 (Open), 要么是唯一的
// 撤单记录 (Canceled), 两者互斥; 都为空表示已全部成交
type OrderStatus struct {
	OrderID    int64
	Executions []Execution
	Open       *int64
	Canceled   *CancelInfo
}
