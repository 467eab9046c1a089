// 文件: pkg/quote/id.go
// 估值记录 ID 生成器
// 使用开源库: github.com/bwmarrin/snowflake

package quote

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	idNode    *snowflake.Node
	idOnce    sync.Once
	idNodeErr error
)

// InitIDNode 初始化雪花节点
// nodeID: 节点ID (0-1023)，多实例部署时每个实例必须不同
func InitIDNode(nodeID int64) error {
	idOnce.Do(func() {
		idNode, idNodeErr = snowflake.NewNode(nodeID)
	})
	return idNodeErr
}

// NextID 生成估值 ID
// 未初始化时使用默认节点0；已初始化时 InitIDNode 直接返回
func NextID() int64 {
	if err := InitIDNode(0); err != nil {
		panic(err)
	}
	return idNode.Generate().Int64()
}
