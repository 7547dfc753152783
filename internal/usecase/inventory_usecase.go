package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// 在庫の管理操作。変更とログ追記を必ず同じtxで行う。
type InventoryUsecase struct {
	tx     repo.TransactionManager
	logger *zap.Logger
}

func NewInventoryUsecase(tx repo.TransactionManager, logger *zap.Logger) *InventoryUsecase {
	return &InventoryUsecase{tx: tx, logger: logger}
}

type StockChangeOutput struct {
	ProductID   int64 `json:"product_id"`
	StockBefore int64 `json:"stock_before"`
	StockAfter  int64 `json:"stock_after"`
}

// 差分適用。正なら入荷(RESTOCK)、負なら補正(CORRECTION)。
// 負の適用で在庫が0を割る場合は失敗する。
func (u *InventoryUsecase) ChangeStock(ctx context.Context, productID int64, change int64, reason string) (StockChangeOutput, error) {
	if productID <= 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if change == 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "change must not be zero")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "reason is required")
	}

	var out StockChangeOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var after int64
		var changeType model.InventoryChangeType

		if change > 0 {
			newStock, err := r.Inventory().IncrementStock(ctx, productID, change)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			after = newStock
			changeType = model.InventoryChangeRestock
		} else {
			newStock, ok, err := r.Inventory().DecrementStockIfAvailable(ctx, productID, -change)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				available, err := r.Inventory().CurrentStock(ctx, productID)
				if errors.Is(err, repo.ErrNotFound) {
					return NewHTTPError(http.StatusNotFound, "not found")
				}
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				return &OutOfStockError{ProductID: productID, Requested: -change, Available: available}
			}
			after = newStock
			changeType = model.InventoryChangeCorrection
		}

		if err := r.Inventory().AppendChangeLog(ctx, model.InventoryChangeLog{
			ProductID:      productID,
			ChangeType:     changeType,
			QuantityBefore: after - change,
			QuantityAfter:  after,
			Reason:         reason,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = StockChangeOutput{
			ProductID:   productID,
			StockBefore: after - change,
			StockAfter:  after,
		}
		return nil
	})

	if err != nil {
		return StockChangeOutput{}, err
	}

	u.logger.Info("stock changed",
		zap.Int64("product_id", out.ProductID),
		zap.Int64("before", out.StockBefore),
		zap.Int64("after", out.StockAfter))

	return out, nil
}

// 絶対値での調整。beforeを行ロックで読んでからセットする。
func (u *InventoryUsecase) AdjustStock(ctx context.Context, productID int64, newStock int64, reason string) (StockChangeOutput, error) {
	if productID <= 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if newStock < 0 {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return StockChangeOutput{}, NewHTTPError(http.StatusBadRequest, "reason is required")
	}

	var out StockChangeOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		oldStock, err := r.Inventory().GetStockForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.Inventory().AppendChangeLog(ctx, model.InventoryChangeLog{
			ProductID:      productID,
			ChangeType:     model.InventoryChangeAdjust,
			QuantityBefore: oldStock,
			QuantityAfter:  newStock,
			Reason:         reason,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = StockChangeOutput{
			ProductID:   productID,
			StockBefore: oldStock,
			StockAfter:  newStock,
		}
		return nil
	})

	if err != nil {
		return StockChangeOutput{}, err
	}
	return out, nil
}
