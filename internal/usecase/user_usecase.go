package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 登録・認証は外部の責務。ここではOTP送信先を持つ最小限のレコードだけ扱う。
type UserUsecase struct {
	tx repo.TransactionManager
}

func NewUserUsecase(tx repo.TransactionManager) *UserUsecase {
	return &UserUsecase{tx: tx}
}

func (u *UserUsecase) CreateUser(ctx context.Context, name, email string) (model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return model.User{}, NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return model.User{}, NewHTTPError(http.StatusBadRequest, "invalid email")
	}

	var created model.User
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		user, err := r.Users().Create(ctx, model.User{Name: name, Email: email})
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusConflict, "email already registered")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		created = user
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return created, nil
}
