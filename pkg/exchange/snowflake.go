// 文件: pkg/exchange/snowflake.go
// 成交 ID 生成器
// 使用开源库: github.com/bwmarrin/snowflake
//
// 注意: 订单号不走雪花算法 —— 订单号是账户内单调递增的计数器,
// 在下单事务里发放。雪花 ID 只用于全局唯一的成交/事件 ID

package exchange

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	initOnce sync.Once
)

// InitSnowflake 初始化雪花算法
// nodeID: 节点ID (0-1023)
func InitSnowflake(nodeID int64) error {
	var err error
	initOnce.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// NextTradeID 生成成交 ID
func NextTradeID() int64 {
	if node == nil {
		// 未初始化则使用默认节点0
		InitSnowflake(0)
	}
	return node.Generate().Int64()
}
