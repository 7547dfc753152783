package usecase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"app/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOTPUsecaseForTest(s *memStore) (*OTPUsecase, *stubSender, *fixedClock) {
	sender := &stubSender{}
	clock := newFixedClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	return NewOTPUsecase(s, sender, clock, testLogger), sender, clock
}

func seedPendingOrder(s *memStore, userID int64) model.Order {
	return seedOrder(s, model.Order{
		UserID:          userID,
		TotalAmount:     decimal.RequireFromString("250.00"),
		PaymentMethod:   model.PaymentMethodGateway,
		ShippingAddress: "somewhere",
		Status:          model.OrderStatusPending,
	})
}

func TestVerify_ConfirmsOrder(t *testing.T) {
	s := newMemStore()
	uc, sender, clock := newOTPUsecaseForTest(s)

	user := seedUser(s, "alice@example.com")
	order := seedPendingOrder(s, user.ID)

	issued, err := uc.Issue(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, issued.Sent)
	assert.Equal(t, []string{"alice@example.com"}, sender.recipients)

	// 期限内（TTLは5分）
	clock.Advance(4 * time.Minute)
	require.NoError(t, uc.Verify(context.Background(), order.ID, issued.Code))

	assert.Equal(t, model.OrderStatusConfirmed, s.orderByID(order.ID).Status)
	entry, found := s.latestOTPForOrder(order.ID)
	require.True(t, found)
	assert.True(t, entry.IsVerified)
}

func TestVerify_ExpiredCode(t *testing.T) {
	s := newMemStore()
	uc, _, clock := newOTPUsecaseForTest(s)

	user := seedUser(s, "alice@example.com")
	order := seedPendingOrder(s, user.ID)

	issued, err := uc.Issue(context.Background(), order.ID)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	err = uc.Verify(context.Background(), order.ID, issued.Code)
	assert.ErrorIs(t, err, ErrOTPExpired)
	assert.Equal(t, model.OrderStatusPending, s.orderByID(order.ID).Status)
}

func TestVerify_WrongCode(t *testing.T) {
	s := newMemStore()
	uc, _, _ := newOTPUsecaseForTest(s)

	user := seedUser(s, "alice@example.com")
	order := seedPendingOrder(s, user.ID)

	issued, err := uc.Issue(context.Background(), order.ID)
	require.NoError(t, err)

	wrong := "000000"
	if issued.Code == wrong {
		wrong = "000001"
	}
	err = uc.Verify(context.Background(), order.ID, wrong)
	assert.ErrorIs(t, err, ErrOTPMismatch)

	assert.Equal(t, model.OrderStatusPending, s.orderByID(order.ID).Status)
	entry, found := s.latestOTPForOrder(order.ID)
	require.True(t, found)
	assert.False(t, entry.IsVerified)
}

func TestVerify_ResendInvalidatesOlderCode(t *testing.T) {
	s := newMemStore()
	uc, _, _ := newOTPUsecaseForTest(s)

	user := seedUser(s, "alice@example.com")
	order := seedPendingOrder(s, user.ID)

	first, err := uc.Issue(context.Background(), order.ID)
	require.NoError(t, err)
	second, err := uc.Issue(context.Background(), order.ID)
	require.NoError(t, err)

	// 照合は最新エントリに対してのみ行う
	if first.Code != second.Code {
		err = uc.Verify(context.Background(), order.ID, first.Code)
		assert.ErrorIs(t, err, ErrOTPMismatch)
	}
	require.NoError(t, uc.Verify(context.Background(), order.ID, second.Code))
	assert.Equal(t, model.OrderStatusConfirmed, s.orderByID(order.ID).Status)
}

func TestVerify_NonPendingOrderRollsBack(t *testing.T) {
	s := newMemStore()
	uc, _, _ := newOTPUsecaseForTest(s)

	user := seedUser(s, "alice@example.com")
	order := seedOrder(s, model.Order{
		UserID:          user.ID,
		TotalAmount:     decimal.RequireFromString("10.00"),
		PaymentMethod:   model.PaymentMethodGateway,
		ShippingAddress: "somewhere",
		Status:          model.OrderStatusConfirmed,
	})

	issued, err := uc.Issue(context.Background(), order.ID)
	require.NoError(t, err)

	err = uc.Verify(context.Background(), order.ID, issued.Code)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// MarkVerifiedも巻き戻るので、エントリは未検証のまま
	entry, found := s.latestOTPForOrder(order.ID)
	require.True(t, found)
	assert.False(t, entry.IsVerified)
}

func TestVerify_NoUnverifiedEntry(t *testing.T) {
	s := newMemStore()
	uc, _, _ := newOTPUsecaseForTest(s)

	user := seedUser(s, "alice@example.com")
	order := seedPendingOrder(s, user.ID)

	err := uc.Verify(context.Background(), order.ID, "123456")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestIssue_OrderNotFound(t *testing.T) {
	s := newMemStore()
	uc, _, _ := newOTPUsecaseForTest(s)

	_, err := uc.Issue(context.Background(), 42)
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

func TestGenerateOTPCode_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTPCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
	}
}
