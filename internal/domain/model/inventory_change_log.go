package model

import "time"

type InventoryChangeType string

const (
	// 注文による引当
	InventoryChangeSale InventoryChangeType = "SALE"
	// 入荷
	InventoryChangeRestock InventoryChangeType = "RESTOCK"
	// 棚卸しなどの絶対値調整
	InventoryChangeAdjust InventoryChangeType = "ADJUST"
	// 補償（手動ロールバック）の記録
	InventoryChangeCorrection InventoryChangeType = "CORRECTION"
)

// 在庫変動の追記専用ログ。更新も削除もしない。
type InventoryChangeLog struct {
	ID             int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID      int64               `gorm:"not null;index" json:"product_id"`
	ChangeType     InventoryChangeType `gorm:"type:varchar(20);not null;index" json:"change_type"`
	QuantityBefore int64               `gorm:"not null" json:"quantity_before"`
	QuantityAfter  int64               `gorm:"not null" json:"quantity_after"`
	Reason         string              `gorm:"type:varchar(255)" json:"reason"`
	CreatedAt      time.Time           `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
