package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// ProductUpsertRequest はカタログ側から同期される価格
type ProductUpsertRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"isActive"`
}

// /admin/products
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

// adminを登録
func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, jwtSecret string) {
	admin := e.Group("/admin")

	admin.Use(middleware.AuthJWT(jwtSecret))
	admin.Use(middleware.AdminRoleGuard())

	admin.PUT("/products/:id", h.upsertProduct)
}

func (h *AdminProductHandler) upsertProduct(c echo.Context) error {
	var req ProductUpsertRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.AdminUpsertProduct(c.Request().Context(), c.Param("id"), usecase.AdminUpsertProductInput{
		Name:     req.Name,
		Price:    req.Price,
		IsActive: req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// AuthJWTが入れた sub を取得
func getSubjectFromContext(c echo.Context) (string, bool) {
	sub, ok := c.Get(middleware.CtxSubjectKey).(string)
	if !ok || sub == "" {
		return "", false
	}
	return sub, true
}
