// 文件: pkg/api/pnl.go
// 持仓盈亏接口

package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"optlab.com/pkg/pnl"
)

// PnLTracker 由 pnl.Tracker 实现
type PnLTracker interface {
	Record(ctx context.Context, snaps []pnl.Snapshot) error
	Track(ctx context.Context, pos pnl.Position, to string) ([]pnl.DailyPnL, error)
}

// TrackRequest 盈亏查询，To 为空表示到今天
type TrackRequest struct {
	Position pnl.Position `json:"position"`
	To       string       `json:"to"`
}

// RecordSnapshots 写入收盘行情，同一合约同一日期覆盖
func (h *Handler) RecordSnapshots(c *gin.Context) {
	if h.tracker == nil {
		errorWithStatus(c, http.StatusServiceUnavailable, "pnl tracker disabled")
		return
	}

	var snaps []pnl.Snapshot
	if err := c.ShouldBindJSON(&snaps); err != nil {
		errorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.tracker.Record(c.Request.Context(), snaps); err != nil {
		log.Printf("[API] record snapshots failed: %v", err)
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, gin.H{"count": len(snaps)})
}

// TrackPnL 逐日盈亏
func (h *Handler) TrackPnL(c *gin.Context) {
	if h.tracker == nil {
		errorWithStatus(c, http.StatusServiceUnavailable, "pnl tracker disabled")
		return
	}

	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.tracker.Track(c.Request.Context(), req.Position, req.To)
	if err != nil {
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, rows)
}
