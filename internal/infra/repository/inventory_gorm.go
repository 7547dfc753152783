package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 足りるときだけ減らす。check-and-decrementを1文で行うので
// 同時実行でも古い在庫を見た減算（売り越し）は起きない。
func (r *InventoryGormRepository) DecrementStockIfAvailable(ctx context.Context, productID int64, qty int64) (int64, bool, error) {
	var newStock int64
	res := r.db.WithContext(ctx).Raw(
		`UPDATE products
		    SET stock = stock - ?, updated_at = now()
		  WHERE id = ? AND deleted_at IS NULL AND stock >= ?
		  RETURNING stock`,
		qty, productID, qty,
	).Scan(&newStock)

	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return newStock, true, nil
}

// 入荷・補償の加算
func (r *InventoryGormRepository) IncrementStock(ctx context.Context, productID int64, qty int64) (int64, error) {
	var newStock int64
	res := r.db.WithContext(ctx).Raw(
		`UPDATE products
		    SET stock = stock + ?, updated_at = now()
		  WHERE id = ? AND deleted_at IS NULL
		  RETURNING stock`,
		qty, productID,
	).Scan(&newStock)

	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, repo.ErrNotFound
	}
	return newStock, nil
}

// 絶対値調整のbeforeを正確に取るため行ロックで読む
func (r *InventoryGormRepository) GetStockForUpdate(ctx context.Context, productID int64) (int64, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, repo.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock", newStock)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *InventoryGormRepository) CurrentStock(ctx context.Context, productID int64) (int64, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", productID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, repo.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

// 追記のみ。既存行は二度と触らない。
func (r *InventoryGormRepository) AppendChangeLog(ctx context.Context, log model.InventoryChangeLog) error {
	return r.db.WithContext(ctx).Create(&log).Error
}
