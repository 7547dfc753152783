package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, repo.ErrConflict
		}
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindByGatewayOrderRef(ctx context.Context, ref string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("gateway_order_ref = ?", ref).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// fromのときだけtoへ。0行なら(false, nil)で、判断は呼び出し側に返す。
func (r *OrderGormRepository) UpdateStatusIf(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CONFIRMEDのままのときだけ参照を保存してAWAITING_PAYMENTへ。
// 参照保存と遷移が別々に見える瞬間を作らない。
func (r *OrderGormRepository) SetGatewayOrderRef(ctx context.Context, orderID int64, ref string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ? AND gateway_order_ref IS NULL", orderID, model.OrderStatusConfirmed).
		Updates(map[string]interface{}{
			"gateway_order_ref": ref,
			"status":            model.OrderStatusAwaitingPayment,
		})

	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, repo.ErrConflict
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AWAITING_PAYMENTのときだけPAIDへ。条件付きUPDATEなので
// 同じコールバックが並行に再送されても適用されるのは1回だけ。
func (r *OrderGormRepository) MarkPaid(ctx context.Context, gatewayOrderRef string, gatewayPaymentRef string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("gateway_order_ref = ? AND status = ?", gatewayOrderRef, model.OrderStatusAwaitingPayment).
		Updates(map[string]interface{}{
			"gateway_payment_ref": gatewayPaymentRef,
			"status":              model.OrderStatusPaid,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}

// postgresの一意制約違反(23505)かどうか
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
