package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type OTPGormRepository struct {
	db *gorm.DB
}

func NewOTPGormRepository(db *gorm.DB) *OTPGormRepository {
	return &OTPGormRepository{db: db}
}

func (r *OTPGormRepository) Create(ctx context.Context, entry model.OTPEntry) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// 最新の未検証エントリだけが照合対象。古い行は上書きされた扱い。
func (r *OTPGormRepository) FindLatestUnverifiedByOrderID(ctx context.Context, orderID int64) (model.OTPEntry, error) {
	var entry model.OTPEntry

	err := r.db.WithContext(ctx).
		Where("order_id = ? AND is_verified = ?", orderID, false).
		Order("created_at desc, id desc").
		First(&entry).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.OTPEntry{}, repo.ErrNotFound
	}
	if err != nil {
		return model.OTPEntry{}, err
	}
	return entry, nil
}

func (r *OTPGormRepository) MarkVerified(ctx context.Context, entryID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.OTPEntry{}).
		Where("id = ? AND is_verified = ?", entryID, false).
		Update("is_verified", true)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
