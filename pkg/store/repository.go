// 文件: pkg/store/repository.go
package store

import (
	"context"

	"optlab.com/pkg/quote"
)

type ValuationRepository interface {
	// 写入 (幂等)
	BatchCreate(ctx context.Context, vs []*quote.Valuation) error

	// 查询
	GetByID(ctx context.Context, valuationID int64) (*quote.Valuation, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]*quote.Valuation, error)
}
