package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

// OTPの発行・再送・検証。
// コードは注文確認の唯一の鍵なのでcrypto/randから引く。
type OTPUsecase struct {
	tx     repo.TransactionManager
	sender OTPSender
	clock  Clock
	logger *zap.Logger
}

func NewOTPUsecase(tx repo.TransactionManager, sender OTPSender, clock Clock, logger *zap.Logger) *OTPUsecase {
	return &OTPUsecase{tx: tx, sender: sender, clock: clock, logger: logger}
}

type IssueOTPOutput struct {
	// 通知チャネルが無いフロー向け。HTTPレスポンスには出さない。
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	// 配送に失敗してもfalseで返すだけ。発行は取り消さない。
	Sent bool `json:"sent"`
}

// 6桁ゼロ埋め。空間は10^6。
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// トランザクション内でOTPエントリを作る。注文作成と同じtxで使えるように
// TxReposを受け取る。戻りは(エントリ, 送信先メール)。
func (u *OTPUsecase) IssueInTx(ctx context.Context, r repo.TxRepos, orderID int64) (model.OTPEntry, string, error) {
	order, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.OTPEntry{}, "", NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.OTPEntry{}, "", NewHTTPError(http.StatusInternalServerError, "db error")
	}

	user, err := r.Users().FindByID(ctx, order.UserID)
	if err != nil {
		return model.OTPEntry{}, "", NewHTTPError(http.StatusInternalServerError, "db error")
	}

	code, err := generateOTPCode()
	if err != nil {
		return model.OTPEntry{}, "", err
	}

	now := u.clock.Now()
	entry := model.OTPEntry{
		UserID:     &order.UserID,
		OrderID:    &orderID,
		Code:       code,
		IsVerified: false,
		CreatedAt:  now,
		ExpiresAt:  now.Add(model.OTPTTL),
	}

	id, err := r.OTPs().Create(ctx, entry)
	if err != nil {
		return model.OTPEntry{}, "", NewHTTPError(http.StatusInternalServerError, "db error")
	}
	entry.ID = id

	return entry, user.Email, nil
}

// 配送はfire-and-forget相当。失敗はfalseで報告するだけ。
func (u *OTPUsecase) Deliver(ctx context.Context, recipient string, code string) bool {
	if err := u.sender.SendOTP(ctx, recipient, code); err != nil {
		u.logger.Warn("otp delivery failed", zap.String("recipient", recipient), zap.Error(err))
		return false
	}
	return true
}

// 再送。新しいエントリを追加するだけで、古い行は「最新優先」ルールで自然に無効化される。
func (u *OTPUsecase) Issue(ctx context.Context, orderID int64) (IssueOTPOutput, error) {
	if orderID <= 0 {
		return IssueOTPOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var entry model.OTPEntry
	var email string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		entry, email, err = u.IssueInTx(ctx, r, orderID)
		return err
	})
	if err != nil {
		return IssueOTPOutput{}, err
	}

	sent := u.Deliver(ctx, email, entry.Code)

	return IssueOTPOutput{
		Code:      entry.Code,
		ExpiresAt: entry.ExpiresAt,
		Sent:      sent,
	}, nil
}

// 照合に成功したら、エントリの検証済みフラグと注文のPENDING→CONFIRMEDを
// 同じtxで確定する。片方だけが見える瞬間は作らない。
func (u *OTPUsecase) Verify(ctx context.Context, orderID int64, code string) error {
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	if code == "" {
		return NewHTTPError(http.StatusBadRequest, "otp is required")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Orders().FindByID(ctx, orderID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		entry, err := r.OTPs().FindLatestUnverifiedByOrderID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOTPNotFound
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if u.clock.Now().After(entry.ExpiresAt) {
			return ErrOTPExpired
		}
		if entry.Code != code {
			return ErrOTPMismatch
		}

		if err := r.OTPs().MarkVerified(ctx, entry.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, model.OrderStatusPending, model.OrderStatusConfirmed)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			// PENDING以外からは確認できない。txごと巻き戻す。
			return ErrInvalidTransition
		}
		return nil
	})
}
