package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/documents/dyeing"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/documents/sales"
	"millstock/internal/infrastructure/http/v1/dto"
)

// --- Purchase ---

// PurchaseHandler serves purchase orders (采购单).
type PurchaseHandler struct {
	*OrderHandler[*purchase.Order, dto.PurchaseOrderRequest, dto.UpdatePurchaseOrderRequest]
	service *purchase.Service
}

// NewPurchaseHandler creates a purchase order handler.
func NewPurchaseHandler(base *BaseHandler, service *purchase.Service) *PurchaseHandler {
	return &PurchaseHandler{
		OrderHandler: NewOrderHandler(base, OrderHandlerConfig[*purchase.Order, dto.PurchaseOrderRequest, dto.UpdatePurchaseOrderRequest]{
			Service:      service,
			EntityName:   purchase.EntityName,
			MapCreateDTO: dto.PurchaseOrderRequest.ToEntity,
			MapUpdateDTO: func(req dto.UpdatePurchaseOrderRequest, o *purchase.Order) *purchase.Order {
				return req.ApplyTo(o)
			},
		}),
		service: service,
	}
}

func (h *PurchaseHandler) Review(c *gin.Context)   { h.Action(h.service.Review)(c) }
func (h *PurchaseHandler) Unreview(c *gin.Context) { h.Action(h.service.Unreview)(c) }
func (h *PurchaseHandler) Commit(c *gin.Context)   { h.Action(h.service.Commit)(c) }

// --- Sales ---

// SalesHandler serves sales orders (销售单).
type SalesHandler struct {
	*OrderHandler[*sales.Order, dto.SalesOrderRequest, dto.UpdateSalesOrderRequest]
	service *sales.Service
}

// NewSalesHandler creates a sales order handler.
func NewSalesHandler(base *BaseHandler, service *sales.Service) *SalesHandler {
	return &SalesHandler{
		OrderHandler: NewOrderHandler(base, OrderHandlerConfig[*sales.Order, dto.SalesOrderRequest, dto.UpdateSalesOrderRequest]{
			Service:      service,
			EntityName:   sales.EntityName,
			MapCreateDTO: dto.SalesOrderRequest.ToEntity,
			MapUpdateDTO: func(req dto.UpdateSalesOrderRequest, o *sales.Order) *sales.Order {
				return req.ApplyTo(o)
			},
		}),
		service: service,
	}
}

func (h *SalesHandler) Review(c *gin.Context)   { h.Action(h.service.Review)(c) }
func (h *SalesHandler) Unreview(c *gin.Context) { h.Action(h.service.Unreview)(c) }
func (h *SalesHandler) Commit(c *gin.Context)   { h.Action(h.service.Commit)(c) }

// --- Dyeing ---

// DyeingHandler serves dyeing orders (染色单).
type DyeingHandler struct {
	*OrderHandler[*dyeing.Order, dto.DyeingOrderRequest, dto.UpdateDyeingOrderRequest]
	service *dyeing.Service
}

// NewDyeingHandler creates a dyeing order handler.
func NewDyeingHandler(base *BaseHandler, service *dyeing.Service) *DyeingHandler {
	return &DyeingHandler{
		OrderHandler: NewOrderHandler(base, OrderHandlerConfig[*dyeing.Order, dto.DyeingOrderRequest, dto.UpdateDyeingOrderRequest]{
			Service:      service,
			EntityName:   dyeing.EntityName,
			MapCreateDTO: dto.DyeingOrderRequest.ToEntity,
			MapUpdateDTO: func(req dto.UpdateDyeingOrderRequest, o *dyeing.Order) *dyeing.Order {
				return req.ApplyTo(o)
			},
		}),
		service: service,
	}
}

func (h *DyeingHandler) Ship(c *gin.Context)     { h.Action(h.service.Ship)(c) }
func (h *DyeingHandler) Complete(c *gin.Context) { h.Action(h.service.Complete)(c) }

// StockIn handles POST /dyeing-orders/:id/stock-in and returns the
// received batches.
func (h *DyeingHandler) StockIn(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.StockInRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	batches, err := h.service.StockIn(c.Request.Context(), orderID, req.Location)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: batches})
}

// --- Adjustment ---

// AdjustmentHandler serves stock adjustment orders (调整单).
type AdjustmentHandler struct {
	*OrderHandler[*adjustment.Order, dto.AdjustmentOrderRequest, dto.UpdateAdjustmentOrderRequest]
	service *adjustment.Service
}

// NewAdjustmentHandler creates an adjustment order handler.
func NewAdjustmentHandler(base *BaseHandler, service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{
		OrderHandler: NewOrderHandler(base, OrderHandlerConfig[*adjustment.Order, dto.AdjustmentOrderRequest, dto.UpdateAdjustmentOrderRequest]{
			Service:      service,
			EntityName:   adjustment.EntityName,
			MapCreateDTO: dto.AdjustmentOrderRequest.ToEntity,
			MapUpdateDTO: func(req dto.UpdateAdjustmentOrderRequest, o *adjustment.Order) *adjustment.Order {
				return req.ApplyTo(o)
			},
		}),
		service: service,
	}
}

func (h *AdjustmentHandler) Commit(c *gin.Context) { h.Action(h.service.Commit)(c) }

// --- Cycle count ---

// CycleCountHandler serves cycle counts (盘点单).
type CycleCountHandler struct {
	*OrderHandler[*cyclecount.Order, dto.CycleCountRequest, dto.UpdateCycleCountRequest]
	service *cyclecount.Service
}

// NewCycleCountHandler creates a cycle count handler.
func NewCycleCountHandler(base *BaseHandler, service *cyclecount.Service) *CycleCountHandler {
	return &CycleCountHandler{
		OrderHandler: NewOrderHandler(base, OrderHandlerConfig[*cyclecount.Order, dto.CycleCountRequest, dto.UpdateCycleCountRequest]{
			Service:      service,
			EntityName:   cyclecount.EntityName,
			MapCreateDTO: dto.CycleCountRequest.ToEntity,
			MapUpdateDTO: func(req dto.UpdateCycleCountRequest, o *cyclecount.Order) *cyclecount.Order {
				return req.ApplyTo(o)
			},
		}),
		service: service,
	}
}

func (h *CycleCountHandler) Start(c *gin.Context) { h.Action(h.service.Start)(c) }

// RecordCount handles POST /cycle-counts/:id/counts.
func (h *CycleCountHandler) RecordCount(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.RecordCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.RecordCount(c.Request.Context(), orderID, req.BatchID, req.Counted, req.Remark)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Complete handles POST /cycle-counts/:id/complete and returns the
// adjustment orders committed for the differences.
func (h *CycleCountHandler) Complete(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	adjustments, err := h.service.Complete(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: adjustments})
}
