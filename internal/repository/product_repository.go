package repository

import (
	"context"

	"app/internal/domain/model"
)

// 商品の永続化だけを約束。在庫数の増減はInventoryRepositoryが持つ。
type ProductRepository interface {
	Create(ctx context.Context, p model.Product) (model.Product, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// 価格・名称などの更新（在庫は対象外）
	Update(ctx context.Context, p model.Product) error
}
