package usecase

import (
	"context"
	"errors"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
)

// カートの編集。注文確定そのものはOrderUsecaseの仕事。
type CartUsecase struct {
	tx repo.TransactionManager
}

func NewCartUsecase(tx repo.TransactionManager) *CartUsecase {
	return &CartUsecase{tx: tx}
}

type CartItemOutput struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartOutput struct {
	ID     int64            `json:"id"`
	UserID int64            `json:"user_id"`
	Status string           `json:"status"`
	Items  []CartItemOutput `json:"items"`
	Total  decimal.Decimal  `json:"total"`
}

// ユーザーのACTIVEカートを返す。無ければ作る。
func (u *CartUsecase) GetOrCreateCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Users().FindByID(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "user not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		cart, err := r.Carts().GetOrCreateActiveByUserID(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out, err = u.buildCartOutput(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) GetCart(ctx context.Context, cartID int64) (CartOutput, error) {
	if cartID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid cart id")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByID(ctx, cartID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out, err = u.buildCartOutput(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

type AddCartItemInput struct {
	ProductID int64
	Quantity  int64
}

// 同一商品の追加は数量加算
func (u *CartUsecase) AddItem(ctx context.Context, cartID int64, in AddCartItemInput) (CartOutput, error) {
	if cartID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid cart id")
	}
	if in.ProductID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := u.findActiveCart(ctx, r, cartID)
		if err != nil {
			return err
		}

		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusBadRequest, "invalid product")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !p.IsActive {
			return NewHTTPError(http.StatusBadRequest, "invalid product")
		}

		if err := r.CartItems().UpsertByCartAndProduct(ctx, cartID, in.ProductID, in.Quantity); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out, err = u.buildCartOutput(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, cartID, itemID, qty int64) (CartOutput, error) {
	if cartID <= 0 || itemID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if qty < 1 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := u.findActiveCart(ctx, r, cartID)
		if err != nil {
			return err
		}

		item, err := r.CartItems().FindByID(ctx, itemID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && item.CartID != cartID) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.CartItems().UpdateQuantity(ctx, itemID, qty); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out, err = u.buildCartOutput(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) RemoveItem(ctx context.Context, cartID, itemID int64) (CartOutput, error) {
	if cartID <= 0 || itemID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := u.findActiveCart(ctx, r, cartID)
		if err != nil {
			return err
		}

		item, err := r.CartItems().FindByID(ctx, itemID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && item.CartID != cartID) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.CartItems().DeleteByID(ctx, itemID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out, err = u.buildCartOutput(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

// ORDEREDのカートは不変。編集はACTIVEのみ。
func (u *CartUsecase) findActiveCart(ctx context.Context, r repo.TxRepos, cartID int64) (model.Cart, error) {
	cart, err := r.Carts().FindByID(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Cart{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if cart.Status != model.CartStatusActive {
		return model.Cart{}, NewHTTPError(http.StatusBadRequest, "cart is not active")
	}
	return cart, nil
}

// 表示用。価格は現在のカタログ価格（確定時に初めて凍結される）。
func (u *CartUsecase) buildCartOutput(ctx context.Context, r repo.TxRepos, cart model.Cart) (CartOutput, error) {
	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outItems := make([]CartItemOutput, 0, len(items))
	total := decimal.Zero

	for _, it := range items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(it.Quantity))
		outItems = append(outItems, CartItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}

	return CartOutput{
		ID:     cart.ID,
		UserID: cart.UserID,
		Status: string(cart.Status),
		Items:  outItems,
		Total:  total,
	}, nil
}
