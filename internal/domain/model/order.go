package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusConfirmed       OrderStatus = "CONFIRMED"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
)

type PaymentMethod string

const (
	// 外部決済ゲートウェイ経由
	PaymentMethodGateway PaymentMethod = "GATEWAY"
	// 代引き。CONFIRMED以降は管理側が手動で進める。
	PaymentMethodCOD PaymentMethod = "COD"
)

// TotalAmountは注文確定時点の明細小計の合計。以後再計算しない。
// GatewayOrderRefはintent作成まで、GatewayPaymentRefは支払完了までNULL。
type Order struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64           `gorm:"not null;index" json:"user_id"`
	CartID            *int64          `gorm:"index" json:"cart_id"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	PaymentMethod     PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	ShippingAddress   string          `gorm:"type:text;not null" json:"shipping_address"`
	GatewayOrderRef   *string         `gorm:"type:varchar(100);uniqueIndex" json:"gateway_order_ref"`
	GatewayPaymentRef *string         `gorm:"type:varchar(100)" json:"gateway_payment_ref"`
	Status            OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
