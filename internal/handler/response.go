package handler

import (
	"log/slog"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ErrorResponse はクライアント向けエラーの形 {success:false, error, code}
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Code: he.Code})
	}

	//500。中身はログにだけ出す
	slog.Default().Error("unhandled error", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: usecase.CodeInternal})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: usecase.CodeValidation})
}
