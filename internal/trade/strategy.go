package trade

import (
	"context"

	"tradelock/internal/models"
)

// Strategy - путь выполнения операций над сделками
type Strategy interface {
	Create(ctx context.Context, actor models.User, draft models.TradeDraft) (models.Trade, error)
	Join(ctx context.Context, actor models.User, link string) (models.Trade, error)
	Confirm(ctx context.Context, actor models.User, id int64) (models.Trade, error)
	Cancel(ctx context.Context, actor models.User, id int64, reason string) (models.Trade, error)
	List(ctx context.Context, actor models.User, filter models.StatusFilter) ([]models.Trade, error)
	Get(ctx context.Context, actor models.User, ref string) (models.Trade, error)
}
