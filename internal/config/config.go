package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	GatewayKeyID     string // 決済ゲートウェイのキーID（フロントにも渡す）
	GatewayKeySecret string // 署名検証に使うシークレット
	GatewayBaseURL   string // 例: https://api.razorpay.com
	GatewayCurrency  string // INR

	SMTPHost     string // 空ならOTPはログ出力のみ
	SMTPPort     int
	MailUsername string
	MailPassword string
	MailFrom     string

	StoreTimeout   time.Duration // DB操作の上限（10s）
	GatewayTimeout time.Duration // ゲートウェイ呼び出しの上限（30s）
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		GatewayKeyID:     os.Getenv("GATEWAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		GatewayBaseURL:   getenv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		GatewayCurrency:  getenv("GATEWAY_CURRENCY", "INR"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		MailUsername: os.Getenv("MAIL_USERNAME"),
		MailPassword: os.Getenv("MAIL_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),
	}

	pgPort, err := atoiEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cfg.PostgresPort = pgPort

	smtpPort, err := atoiEnv("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	cfg.SMTPPort = smtpPort

	storeSec, err := atoiEnv("STORE_TIMEOUT_SECONDS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreTimeout = time.Duration(storeSec) * time.Second

	gwSec, err := atoiEnv("GATEWAY_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.GatewayTimeout = time.Duration(gwSec) * time.Second

	//必須チェック
	if cfg.GatewayKeyID == "" {
		return Config{}, fmt.Errorf("GATEWAY_KEY_ID is required")
	}
	if cfg.GatewayKeySecret == "" {
		return Config{}, fmt.Errorf("GATEWAY_KEY_SECRET is required")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
