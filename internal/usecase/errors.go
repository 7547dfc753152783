package usecase

import (
	"errors"
	"fmt"
)

// 入力不備などの単純なHTTPエラー
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 業務上の失敗は型付きで返す。呼び出し側はerrors.Is/Asで分岐する。
var (
	// カートが無い・空
	ErrEmptyCart = errors.New("cart empty")
	// 注文に未検証OTPが存在しない
	ErrOTPNotFound = errors.New("otp not found")
	// 期限切れ
	ErrOTPExpired = errors.New("otp expired")
	// コード不一致。正しいコードは絶対に返さない。
	ErrOTPMismatch = errors.New("invalid otp")
	// コールバック署名の検証失敗
	ErrSignatureInvalid = errors.New("signature invalid")
	// ゲートウェイ呼び出しの失敗・タイムアウト（リトライ可能）
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// 現在のステータスから許されない遷移
	ErrInvalidTransition = errors.New("invalid status transition")
)

// 在庫不足。どの商品が・いくつ要求して・いくつ残っていたかを持つ。
type OutOfStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: product %d requested %d available %d",
		e.ProductID, e.Requested, e.Available)
}
