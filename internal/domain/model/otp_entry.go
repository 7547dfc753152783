package model

import "time"

// OTPの有効期限は発行から5分。
const OTPTTL = 5 * time.Minute

// 再送は新しい行を追加するだけで、古い行は消さない（監査のため）。
// 照合には「最新の未検証エントリ」だけを使う。
type OTPEntry struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *int64    `gorm:"index" json:"user_id"`
	OrderID    *int64    `gorm:"index" json:"order_id"`
	Code       string    `gorm:"type:char(6);not null" json:"-"`
	IsVerified bool      `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
}
