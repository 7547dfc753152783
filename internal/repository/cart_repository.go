package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartRepository interface {
	GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindByID(ctx context.Context, cartID int64) (model.Cart, error)
	// fromに一致するときだけ遷移させる。0行なら(false, nil)。
	// ACTIVE→ORDEREDを「ちょうど一度」にするための条件付き更新。
	UpdateStatusIf(ctx context.Context, cartID int64, from, to model.CartStatus) (bool, error)
}

type CartItemRepository interface {
	// 引当のロック順を安定させるため、product_id昇順で返す
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	// 同一商品は数量加算
	UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, addQty int64) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
}
