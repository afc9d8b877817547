// 文件: pkg/ledger/model.go
// 账本数据模型
//
// 四张核心表:
// - accounts:      账户 (现金余额 + 订单号计数器)
// - positions:     持仓 (账户 × 代码 → 股数, 不允许为负)
// - open_orders:   挂单簿 (剩余数量减到 0 表示已关闭, 行永不删除)
// - closed_records: 成交/撤单历史 (只追加)

package ledger

// =============================================================================
// 买卖方向
// =============================================================================

// Side 订单方向
// 线路协议里用数量的正负号表示方向, 入库前统一转换成显式方向 + 无符号数量,
// 避免符号运算带来的隐蔽错误
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	if s == SideBuy {
		return "BUY"
	}
	return "SELL"
}

// Opposite 返回对手方向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// =============================================================================
// 历史记录状态
// =============================================================================

// RecordStatus 历史记录类型: 0=成交, 1=撤单
type RecordStatus int8

const (
	StatusExecuted RecordStatus = 0
	StatusCanceled RecordStatus = 1
)

func (s RecordStatus) String() string {
	if s == StatusExecuted {
		return "EXECUTED"
	}
	return "CANCELED"
}

// =============================================================================
// Account - 账户
// =============================================================================

// Account 账户记录
// NextOrderID 是每个账户独立的订单号计数器, 在下单事务内原子递增,
// 替代"数一数已有订单"的派生算法 (并发下单时会撞号)
type Account struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"column:account_id;uniqueIndex;type:varchar(32)"`

	Balance     int64 `gorm:"column:balance"`       // 现金余额 (分)
	NextOrderID int64 `gorm:"column:next_order_id"` // 已发放的最大订单号

	CreatedAt int64 `gorm:"column:created_at"`
	UpdatedAt int64 `gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// =============================================================================
// Position - 持仓
// =============================================================================

// Position 持仓记录
// 某代码第一次被交易时自动建行 (Qty=0), 任何已提交的操作之后 Qty >= 0
type Position struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"column:account_id;uniqueIndex:idx_account_symbol;type:varchar(32)"`
	Symbol    string `gorm:"column:symbol;uniqueIndex:idx_account_symbol;type:varchar(32)"`
	Qty       int64  `gorm:"column:qty"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// =============================================================================
// OpenOrder - 挂单
// =============================================================================

// OpenOrder 挂单簿条目
// 键是 (AccountID, OrderID), 订单号按账户单调递增。
// Qty 是剩余未成交数量 (无符号), 成交逐笔递减, 减到 0 或撤单清零后
// 行仍然保留, 作为稳定的历史键供查询
type OpenOrder struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"column:account_id;uniqueIndex:idx_account_order;type:varchar(32)"`
	OrderID   int64  `gorm:"column:order_id;uniqueIndex:idx_account_order"`

	Symbol string `gorm:"column:symbol;index;type:varchar(32)"`
	Side   Side   `gorm:"column:side"`
	Qty    int64  `gorm:"column:qty"`   // 剩余数量, 0 表示已关闭
	Price  int64  `gorm:"column:price"` // 限价 (分)

	CreatedAt int64 `gorm:"column:created_at;index"` // Unix 纳秒, 时间优先的依据
}

func (OpenOrder) TableName() string {
	return "open_orders"
}

// IsClosed 剩余数量为 0 即已关闭 (成交完或已撤)
func (o *OpenOrder) IsClosed() bool {
	return o.Qty == 0
}

// =============================================================================
// ClosedRecord - 成交/撤单历史
// =============================================================================

// ClosedRecord 历史记录, 只追加不修改
// 一笔撮合给买卖双方各追加一条 Executed 记录 (Shares 和 Price 相同);
// 撤单追加一条 Canceled 记录, 且必然是该订单时间上最后一条
type ClosedRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AccountID string `gorm:"column:account_id;index:idx_closed_order;type:varchar(32)"`
	OrderID   int64  `gorm:"column:order_id;index:idx_closed_order"`
	Seq       int    `gorm:"column:seq"` // 订单内序号, 追加时派生

	Status RecordStatus `gorm:"column:status"`
	Shares int64        `gorm:"column:shares"` // 本条记录涉及的数量 (无符号)
	Price  int64        `gorm:"column:price"`  // 成交价或撤单时的限价 (分)
	Time   int64        `gorm:"column:time"`   // Unix 秒
}

func (ClosedRecord) TableName() string {
	return "closed_records"
}
