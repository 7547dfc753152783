package handler

import (
	"errors"
	"net/http"
	"strconv"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// usecaseの型付きエラーをHTTPに写す。ここ以外でステータスを決めない。
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	var oos *usecase.OutOfStockError
	if errors.As(err, &oos) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "out of stock"})
	}

	switch {
	case errors.Is(err, usecase.ErrEmptyCart):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cart empty"})
	case errors.Is(err, usecase.ErrOTPNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "otp not found"})
	case errors.Is(err, usecase.ErrOTPExpired):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "otp expired"})
	case errors.Is(err, usecase.ErrOTPMismatch):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid otp"})
	case errors.Is(err, usecase.ErrSignatureInvalid):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "signature invalid"})
	case errors.Is(err, usecase.ErrGatewayUnavailable):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "gateway unavailable"})
	case errors.Is(err, usecase.ErrInvalidTransition):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status transition"})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
