package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/domain/catalogs/color"
	"millstock/internal/domain/catalogs/counterparty"
	"millstock/internal/domain/catalogs/product"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/registers/stock"
	"millstock/internal/infrastructure/http/v1/dto"
)

// ProductHandler serves products and their per-color inventory.
type ProductHandler struct {
	*CatalogHandler[*product.Product, dto.CreateProductRequest, dto.UpdateProductRequest]
	colors *color.Service
	stock  *stock.Service
}

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, products *product.Service, colors *color.Service, stockSvc *stock.Service) *ProductHandler {
	return &ProductHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*product.Product, dto.CreateProductRequest, dto.UpdateProductRequest]{
			Service:      products,
			EntityName:   product.EntityName,
			MapCreateDTO: dto.CreateProductRequest.ToEntity,
			MapUpdateDTO: dto.UpdateProductRequest.ApplyTo,
		}),
		colors: colors,
		stock:  stockSvc,
	}
}

// Colors handles GET /products/:id/colors.
func (h *ProductHandler) Colors(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	items, err := h.colors.ListByProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: items})
}

// Inventory handles GET /products/:id/inventory.
func (h *ProductHandler) Inventory(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	inv, err := h.stock.GetInventoryByProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// ColorHandler serves colors.
type ColorHandler struct {
	*CatalogHandler[*color.Color, dto.CreateColorRequest, dto.UpdateColorRequest]
}

// NewColorHandler creates a color handler.
func NewColorHandler(base *BaseHandler, colors *color.Service) *ColorHandler {
	return &ColorHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*color.Color, dto.CreateColorRequest, dto.UpdateColorRequest]{
			Service:      colors,
			EntityName:   color.EntityName,
			MapCreateDTO: dto.CreateColorRequest.ToEntity,
			MapUpdateDTO: dto.UpdateColorRequest.ApplyTo,
		}),
	}
}

// CounterpartyHandler serves counterparties and their balances.
type CounterpartyHandler struct {
	*CatalogHandler[*counterparty.Counterparty, dto.CreateCounterpartyRequest, dto.UpdateCounterpartyRequest]
	ledger *ledger.Service
}

// NewCounterpartyHandler creates a counterparty handler.
func NewCounterpartyHandler(base *BaseHandler, counterparties *counterparty.Service, ledgerSvc *ledger.Service) *CounterpartyHandler {
	return &CounterpartyHandler{
		CatalogHandler: NewCatalogHandler(base, CatalogHandlerConfig[*counterparty.Counterparty, dto.CreateCounterpartyRequest, dto.UpdateCounterpartyRequest]{
			Service:      counterparties,
			EntityName:   counterparty.EntityName,
			MapCreateDTO: dto.CreateCounterpartyRequest.ToEntity,
			MapUpdateDTO: dto.UpdateCounterpartyRequest.ApplyTo,
		}),
		ledger: ledgerSvc,
	}
}

// Balance handles GET /counterparties/:id/balance?kind=receivable|payable.
func (h *CounterpartyHandler) Balance(c *gin.Context) {
	cpID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	kind := ledger.Kind(c.DefaultQuery("kind", string(ledger.KindReceivable)))
	if !kind.IsValid() {
		h.Error(c, apperror.NewValidation("invalid account kind").WithDetail("field", "kind").WithDetail("value", string(kind)))
		return
	}

	balance, err := h.ledger.CounterpartyBalance(c.Request.Context(), cpID, kind)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, balance)
}
