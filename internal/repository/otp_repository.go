package repository

import (
	"context"

	"app/internal/domain/model"
)

type OTPRepository interface {
	Create(ctx context.Context, entry model.OTPEntry) (int64, error)
	// 注文に紐づく最新の未検証エントリ。再送で増えた古い行は無視される。
	FindLatestUnverifiedByOrderID(ctx context.Context, orderID int64) (model.OTPEntry, error)
	MarkVerified(ctx context.Context, entryID int64) error
}
