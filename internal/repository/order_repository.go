package repository

import (
	"context"

	"app/internal/domain/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (int64, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByGatewayOrderRef(ctx context.Context, ref string) (model.Order, error)

	// fromに一致するときだけtoへ遷移させる。0行なら(false, nil)。
	// 後戻り・スキップ禁止は呼び出し側がfromで表現する。
	UpdateStatusIf(ctx context.Context, orderID int64, from, to model.OrderStatus) (bool, error)

	// CONFIRMEDのままのときだけゲートウェイ参照を保存してAWAITING_PAYMENTへ。
	SetGatewayOrderRef(ctx context.Context, orderID int64, ref string) (bool, error)

	// AWAITING_PAYMENTのときだけPAIDにして支払参照を保存。
	// 同じコールバックの再送と同時実行しても二重適用されない。
	MarkPaid(ctx context.Context, gatewayOrderRef string, gatewayPaymentRef string) (bool, error)
}

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
