package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

type AssistantHandler struct {
	uc *usecase.AssistantUsecase
}

func NewAssistantHandler(uc *usecase.AssistantUsecase) *AssistantHandler {
	return &AssistantHandler{uc: uc}
}

func (h *AssistantHandler) RegisterRoutes(e *echo.Echo, gates ...echo.MiddlewareFunc) {
	e.POST("/ai/generate", h.generate, gates...)
}

func (h *AssistantHandler) generate(c echo.Context) error {
	if !isJSON(c.Request().Header.Get(echo.HeaderContentType)) {
		return c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{
			Error: "Content-Type must be application/json",
			Code:  usecase.CodeUnsupportedMediaType,
		})
	}

	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.Generate(c.Request().Context(), req.Prompt)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, GenerateResponse{Success: true, Text: out.Text})
}
