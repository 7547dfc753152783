package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// OTPをメールで届ける。送信失敗は呼び出し側へ返すが、
// OTPの発行自体を巻き戻す理由にはしない（再送で回復できる）。
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTPSender) SendOTP(ctx context.Context, recipient string, code string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your OTP Code\r\n\r\nYour OTP code is: %s. It will expire in 5 minutes.\r\n",
		s.from, recipient, code,
	)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.from, []string{recipient}, []byte(msg))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SMTP未設定の環境用。届け先と発行の事実だけログに残す。
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOTP(ctx context.Context, recipient string, code string) error {
	// コード本体はログに出さない
	s.logger.Info("otp issued (smtp disabled)", zap.String("recipient", recipient))
	return nil
}
