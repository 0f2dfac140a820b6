package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/core/types"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stock"
	"millstock/internal/infrastructure/http/v1/dto"
)

// StockHandler serves batches and their movement journal.
type StockHandler struct {
	*BaseHandler
	stock  *stock.Service
	engine *posting.Engine
}

// NewStockHandler creates a stock handler.
func NewStockHandler(base *BaseHandler, stockSvc *stock.Service, engine *posting.Engine) *StockHandler {
	return &StockHandler{BaseHandler: base, stock: stockSvc, engine: engine}
}

// List handles GET /batches?productId=&colorId=&search=&excludeZero=.
func (h *StockHandler) List(c *gin.Context) {
	filter := stock.BatchFilter{
		Search:      c.Query("search"),
		ExcludeZero: c.Query("excludeZero") == "true",
		Limit:       h.ParseIntQuery(c, "limit", 50),
		Offset:      h.ParseIntQuery(c, "offset", 0),
	}

	var ok bool
	if filter.ProductID, ok = h.QueryID(c, "productId"); !ok {
		return
	}
	if filter.ColorID, ok = h.QueryID(c, "colorId"); !ok {
		return
	}

	result, err := h.stock.ListBatches(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /batches/:id.
func (h *StockHandler) Get(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	b, err := h.stock.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// Adjust handles POST /batches/:id/adjust, a manual correction outside any
// order.
func (h *StockHandler) Adjust(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.engine.AdjustStock(c.Request.Context(), batchID, req.Delta, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// Check handles GET /batches/:id/check?quantity=.
func (h *StockHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	qty, err := types.ParseQuantity(c.Query("quantity"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid quantity").WithDetail("field", "quantity").WithCause(err))
		return
	}

	enough, err := h.stock.CheckStock(ctx, batchID, qty)
	if err != nil {
		h.Error(c, err)
		return
	}
	b, err := h.stock.GetBatch(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.CheckStockResponse{
		BatchID:   batchID.String(),
		Quantity:  qty,
		Available: b.StockQuantity,
		Enough:    enough,
	})
}

// Movements handles GET /batches/:id/movements.
func (h *StockHandler) Movements(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	movements, err := h.stock.ListMovements(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: movements})
}
