package usecase

import (
	"context"
	"time"
)

// 決済ゲートウェイの約束。実体はプロセスで1つだけ作って注入する。
type PaymentGateway interface {
	// リモートにpayment intentを作成して参照IDを返す。
	// amountMinorは最小通貨単位（INRならpaise）。
	CreateIntent(ctx context.Context, amountMinor int64, currency string, receipt string) (string, error)
	// コールバック署名の検証
	VerifySignature(orderRef, paymentRef, signature string) bool
	// フロントへ渡す公開キーID
	KeyID() string
	Currency() string
}

// OTPの配送役。失敗しても発行は巻き戻さない。
type OTPSender interface {
	SendOTP(ctx context.Context, recipient string, code string) error
}

type Clock interface {
	Now() time.Time
}
