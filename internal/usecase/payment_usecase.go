package usecase

import (
	"context"
	"errors"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var minorUnitsPerUnit = decimal.NewFromInt(100)

// ゲートウェイ連携。intent作成と支払確定コールバックの検証を持つ。
type PaymentUsecase struct {
	tx      repo.TransactionManager
	gateway PaymentGateway
	logger  *zap.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, gateway PaymentGateway, logger *zap.Logger) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, gateway: gateway, logger: logger}
}

type CreateIntentOutput struct {
	GatewayOrderID string `json:"gateway_order_id"`
	// 最小通貨単位（INRならpaise）
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
}

// CONFIRMEDの注文に対してリモートintentを作る。
// 参照が既にあれば同じものを返すだけで、リモートには二度作らない。
func (u *PaymentUsecase) CreateIntent(ctx context.Context, orderID int64) (CreateIntentOutput, error) {
	if orderID <= 0 {
		return CreateIntentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		order, err = r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return CreateIntentOutput{}, err
	}

	amountMinor := order.TotalAmount.Mul(minorUnitsPerUnit).IntPart()

	if order.GatewayOrderRef != nil {
		return u.intentOutput(*order.GatewayOrderRef, amountMinor), nil
	}
	if order.Status != model.OrderStatusConfirmed {
		return CreateIntentOutput{}, ErrInvalidTransition
	}

	// 外部呼び出しはtxの外。失敗しても注文はCONFIRMEDのまま、参照も残らない。
	receipt := "order_rcpt_" + uuid.NewString()
	gatewayOrderID, err := u.gateway.CreateIntent(ctx, amountMinor, u.gateway.Currency(), receipt)
	if err != nil {
		u.logger.Warn("create intent failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return CreateIntentOutput{}, ErrGatewayUnavailable
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().SetGatewayOrderRef(ctx, orderID, gatewayOrderID)
		if err != nil && !errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err == nil && ok {
			return nil
		}

		// 並行する呼び出しに負けた。保存済みの参照をそのまま使う。
		current, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if current.GatewayOrderRef == nil {
			return ErrInvalidTransition
		}
		gatewayOrderID = *current.GatewayOrderRef
		return nil
	})
	if err != nil {
		return CreateIntentOutput{}, err
	}

	return u.intentOutput(gatewayOrderID, amountMinor), nil
}

func (u *PaymentUsecase) intentOutput(gatewayOrderID string, amountMinor int64) CreateIntentOutput {
	return CreateIntentOutput{
		GatewayOrderID: gatewayOrderID,
		Amount:         amountMinor,
		Currency:       u.gateway.Currency(),
		Key:            u.gateway.KeyID(),
	}
}

type FinalizePaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// コールバックの署名検証と PAID への確定。
// 同じ有効なコールバックが再送されても2回目以降はno-opの成功。
func (u *PaymentUsecase) FinalizePayment(ctx context.Context, in FinalizePaymentInput) error {
	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return NewHTTPError(http.StatusBadRequest, "missing payment details")
	}

	if !u.gateway.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		// 偽造の可能性があるので参照つきで残す（署名値は残さない）
		u.logger.Warn("payment signature verification failed",
			zap.String("gateway_order_id", in.GatewayOrderID),
			zap.String("gateway_payment_id", in.GatewayPaymentID))
		return ErrSignatureInvalid
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().MarkPaid(ctx, in.GatewayOrderID, in.GatewayPaymentID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if ok {
			u.logger.Info("payment finalized",
				zap.String("gateway_order_id", in.GatewayOrderID))
			return nil
		}

		order, err := r.Orders().FindByGatewayOrderRef(ctx, in.GatewayOrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// コールバック再送。同じ支払参照で既にPAIDなら成功扱い。
		if order.Status == model.OrderStatusPaid &&
			order.GatewayPaymentRef != nil &&
			*order.GatewayPaymentRef == in.GatewayPaymentID {
			return nil
		}
		return ErrInvalidTransition
	})
}
