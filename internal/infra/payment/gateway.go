package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"app/internal/config"

	"go.uber.org/zap"
)

// Razorpay互換のゲートウェイクライアント。
// プロセスで1つだけ作り、usecaseへ注入して使い回す。
type GatewayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	currency  string
	http      *http.Client
	logger    *zap.Logger
}

func NewGatewayClient(cfg config.Config, logger *zap.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:   cfg.GatewayBaseURL,
		keyID:     cfg.GatewayKeyID,
		keySecret: cfg.GatewayKeySecret,
		currency:  cfg.GatewayCurrency,
		http:      &http.Client{Timeout: cfg.GatewayTimeout},
		logger:    logger,
	}
}

// フロントへ渡す公開キーID（シークレットではない）
func (c *GatewayClient) KeyID() string {
	return c.keyID
}

func (c *GatewayClient) Currency() string {
	return c.currency
}

type createIntentRequest struct {
	Amount         int64  `json:"amount"` // 最小通貨単位（INRならpaise）
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type createIntentResponse struct {
	ID string `json:"id"`
}

// リモートにpayment intentを作成して参照IDを返す。
func (c *GatewayClient) CreateIntent(ctx context.Context, amountMinor int64, currency string, receipt string) (string, error) {
	body, err := json.Marshal(createIntentRequest{
		Amount:         amountMinor,
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gateway create intent failed",
			zap.String("receipt", receipt),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return "", fmt.Errorf("gateway create intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("gateway create intent rejected",
			zap.String("receipt", receipt),
			zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("gateway create intent: status %d", resp.StatusCode)
	}

	var out createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gateway create intent: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("gateway create intent: empty id")
	}
	return out.ID, nil
}

// ゲートウェイの公開仕様どおり、"orderRef|paymentRef"への
// HMAC-SHA256(hex)をシークレットで検証する。比較は定数時間。
func (c *GatewayClient) VerifySignature(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
