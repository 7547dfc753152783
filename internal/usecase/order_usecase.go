package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 注文確定のオーケストレータ。
// 在庫引当・注文作成・カート遷移・OTP発行を1つのtxにまとめる。
type OrderUsecase struct {
	tx     repo.TransactionManager
	otp    *OTPUsecase
	logger *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, otp *OTPUsecase, logger *zap.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, otp: otp, logger: logger}
}

type PlaceOrderInput struct {
	CartID          int64
	ShippingAddress string
	PaymentMethod   model.PaymentMethod
}

type PlaceOrderOutput struct {
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      string          `json:"status"`
	OTPSent     bool            `json:"otp_sent"`
	// 通知チャネルが無いフロー向け。レスポンスには載せない。
	OTPCode string `json:"-"`
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
}

type OrderOutput struct {
	ID                int64             `json:"id"`
	UserID            int64             `json:"user_id"`
	Status            string            `json:"status"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	PaymentMethod     string            `json:"payment_method"`
	ShippingAddress   string            `json:"shipping_address"`
	GatewayOrderRef   *string           `json:"gateway_order_ref"`
	GatewayPaymentRef *string           `json:"gateway_payment_ref"`
	CreatedAt         time.Time         `json:"created_at"`
	Items             []OrderItemOutput `json:"items"`
}

// 手順は全部または無し。どこかで失敗したら在庫もカートも注文も元のまま。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if in.CartID <= 0 {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid cart_id")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "shipping_address is required")
	}
	method := in.PaymentMethod
	if method == "" {
		method = model.PaymentMethodGateway
	}
	if method != model.PaymentMethodGateway && method != model.PaymentMethodCOD {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}

	var out PlaceOrderOutput
	var otpEntry model.OTPEntry
	var otpEmail string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByID(ctx, in.CartID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if cart.Status != model.CartStatusActive {
			return NewHTTPError(http.StatusBadRequest, "cart is not active")
		}

		// product_id昇順で返るので、同じ商品集合を触る注文同士の
		// ロック取得順が揃い、デッドロックしない。
		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return ErrEmptyCart
		}

		orderItems := make([]model.OrderItem, 0, len(cartItems))
		total := decimal.Zero

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}

			// 引当。足りなければtxごと巻き戻すので部分引当は残らない。
			newStock, ok, err := r.Inventory().DecrementStockIfAvailable(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				available, err := r.Inventory().CurrentStock(ctx, ci.ProductID)
				if err != nil {
					available = 0
				}
				return &OutOfStockError{
					ProductID: ci.ProductID,
					Requested: ci.Quantity,
					Available: available,
				}
			}

			if err := r.Inventory().AppendChangeLog(ctx, model.InventoryChangeLog{
				ProductID:      ci.ProductID,
				ChangeType:     model.InventoryChangeSale,
				QuantityBefore: newStock + ci.Quantity,
				QuantityAfter:  newStock,
				Reason:         "order placement",
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			// 価格は確定時点のコピー。以後の改定に影響されない。
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
			})

			total = total.Add(p.Price.Mul(decimal.NewFromInt(ci.Quantity)))
		}

		cartID := cart.ID
		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:          cart.UserID,
			CartID:          &cartID,
			TotalAmount:     total,
			PaymentMethod:   method,
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			Status:          model.OrderStatusPending,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// ACTIVE→ORDEREDは一度きり。負けたら同じカートが並行で確定された。
		moved, err := r.Carts().UpdateStatusIf(ctx, cart.ID, model.CartStatusActive, model.CartStatusOrdered)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !moved {
			return NewHTTPError(http.StatusConflict, "cart already ordered")
		}

		// OTP発行も同じtx。発行に失敗したら注文ごと無かったことになる。
		otpEntry, otpEmail, err = u.otp.IssueInTx(ctx, r, orderID)
		if err != nil {
			return err
		}

		out = PlaceOrderOutput{
			OrderID:     orderID,
			TotalAmount: total,
			Status:      string(model.OrderStatusPending),
			OTPCode:     otpEntry.Code,
		}
		return nil
	})

	if err != nil {
		return PlaceOrderOutput{}, err
	}

	// 配送はcommit後。失敗しても注文は有効で、再送で回復する。
	out.OTPSent = u.otp.Deliver(ctx, otpEmail, otpEntry.Code)

	u.logger.Info("order placed",
		zap.Int64("order_id", out.OrderID),
		zap.String("total_amount", out.TotalAmount.StringFixed(2)),
		zap.Bool("otp_sent", out.OTPSent))

	return out, nil
}

func (u *OrderUsecase) GetOrderDetail(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			UnitPrice: it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:                o.ID,
		UserID:            o.UserID,
		Status:            string(o.Status),
		TotalAmount:       o.TotalAmount,
		PaymentMethod:     string(o.PaymentMethod),
		ShippingAddress:   o.ShippingAddress,
		GatewayOrderRef:   o.GatewayOrderRef,
		GatewayPaymentRef: o.GatewayPaymentRef,
		CreatedAt:         o.CreatedAt,
		Items:             outItems,
	}
}
