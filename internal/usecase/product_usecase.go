package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx repo.TransactionManager
}

func NewProductUsecase(tx repo.TransactionManager) *ProductUsecase {
	return &ProductUsecase{tx: tx}
}

type CreateProductInput struct {
	Name        string
	Description string
	// "199.90" のような固定小数点文字列で受ける
	Price string
	Stock int64
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, in CreateProductInput) (model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "name is required")
	}
	price, err := decimal.NewFromString(in.Price)
	if err != nil || price.IsNegative() {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid price")
	}
	if in.Stock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}

	var created model.Product

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, model.Product{
			Name:        name,
			Description: in.Description,
			Price:       price,
			Stock:       in.Stock,
			IsActive:    true,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 初期在庫もログに残して台帳を完全にしておく
		if in.Stock > 0 {
			if err := r.Inventory().AppendChangeLog(ctx, model.InventoryChangeLog{
				ProductID:      p.ID,
				ChangeType:     model.InventoryChangeRestock,
				QuantityBefore: 0,
				QuantityAfter:  in.Stock,
				Reason:         "initial stock",
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		created = p
		return nil
	})

	if err != nil {
		return model.Product{}, err
	}
	return created, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}
