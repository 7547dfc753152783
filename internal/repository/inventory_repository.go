package repository

import (
	"context"

	"app/internal/domain/model"
)

// 在庫カウンタの唯一の書き込み窓口。変更は必ずログとセットで使う。
type InventoryRepository interface {
	// 足りるときだけ減算し、減算後の在庫を返す。足りなければ(0, false, nil)。
	// check-and-decrementは1文のUPDATEで行い、同時実行でも古い在庫を見ない。
	DecrementStockIfAvailable(ctx context.Context, productID int64, qty int64) (int64, bool, error)

	// 無条件の加算（入荷・補償）。加算後の在庫を返す。
	IncrementStock(ctx context.Context, productID int64, qty int64) (int64, error)

	// 行ロック付きで現在庫を読む（絶対値調整のbefore取得用）
	GetStockForUpdate(ctx context.Context, productID int64) (int64, error)

	// 絶対値で設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫の現在値（ロックなし・表示用）
	CurrentStock(ctx context.Context, productID int64) (int64, error)

	// 変動ログを1件追記
	AppendChangeLog(ctx context.Context, log model.InventoryChangeLog) error
}
