package usecase

import (
	"context"
	"errors"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 代引き注文の帯域外の進行（入金確認・配達完了）を管理側から進める。
// ゲートウェイ経由のPAIDはFinalizePayment以外からは到達しない。
type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	logger *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, logger *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, logger: logger}
}

func (u *AdminOrderUsecase) UpdateOrderStatus(ctx context.Context, orderID int64, to model.OrderStatus) error {
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		order, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		var from model.OrderStatus
		switch to {
		case model.OrderStatusPaid:
			// 管理側でPAIDにできるのは代引きだけ
			if order.PaymentMethod != model.PaymentMethodCOD {
				return ErrInvalidTransition
			}
			from = model.OrderStatusConfirmed
		case model.OrderStatusDelivered:
			from = model.OrderStatusPaid
		default:
			return NewHTTPError(http.StatusBadRequest, "invalid status")
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, from, to)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return ErrInvalidTransition
		}

		u.logger.Info("order status updated by admin",
			zap.Int64("order_id", orderID),
			zap.String("to", string(to)))
		return nil
	})
}
