package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/documents"
	"millstock/internal/infrastructure/http/v1/dto"
)

// OrderService is what every order family service offers the handler.
type OrderService[T documents.Order] interface {
	Create(ctx context.Context, order T) error
	GetByID(ctx context.Context, orderID id.ID) (T, error)
	Update(ctx context.Context, order T) error
	List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[T], error)
	Cancel(ctx context.Context, orderID id.ID) (T, error)
}

// OrderHandler provides generic HTTP handlers for order entities.
// Family specific lifecycle actions are mounted through Action.
type OrderHandler[T documents.Order, CreateDTO any, UpdateDTO any] struct {
	*BaseHandler
	service    OrderService[T]
	entityName string

	mapCreateDTO func(dto CreateDTO) T
	mapUpdateDTO func(dto UpdateDTO, existing T) T
}

// OrderHandlerConfig configures the order handler.
type OrderHandlerConfig[T documents.Order, CreateDTO any, UpdateDTO any] struct {
	Service      OrderService[T]
	EntityName   string
	MapCreateDTO func(dto CreateDTO) T
	MapUpdateDTO func(dto UpdateDTO, existing T) T
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler[T documents.Order, CreateDTO any, UpdateDTO any](
	base *BaseHandler,
	cfg OrderHandlerConfig[T, CreateDTO, UpdateDTO],
) *OrderHandler[T, CreateDTO, UpdateDTO] {
	return &OrderHandler[T, CreateDTO, UpdateDTO]{
		BaseHandler:  base,
		service:      cfg.Service,
		entityName:   cfg.EntityName,
		mapCreateDTO: cfg.MapCreateDTO,
		mapUpdateDTO: cfg.MapUpdateDTO,
	}
}

// List handles GET /{orders}?status=&counterpartyId=&dateFrom=&dateTo=.
func (h *OrderHandler[T, CreateDTO, UpdateDTO]) List(c *gin.Context) {
	filter := documents.ListFilter{ListFilter: domain.DefaultListFilter()}
	filter.OrderBy = c.Query("orderBy")
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", filter.Limit)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.Status = c.Query("status")

	var ok bool
	if filter.CounterpartyID, ok = h.QueryID(c, "counterpartyId"); !ok {
		return
	}
	if filter.DateFrom, ok = h.QueryDate(c, "dateFrom"); !ok {
		return
	}
	if filter.DateTo, ok = h.QueryDate(c, "dateTo"); !ok {
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
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

// Get handles GET /{orders}/:id.
func (h *OrderHandler[T, CreateDTO, UpdateDTO]) Get(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Create handles POST /{orders}.
func (h *OrderHandler[T, CreateDTO, UpdateDTO]) Create(c *gin.Context) {
	var req CreateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	order := h.mapCreateDTO(req)
	if err := h.service.Create(c.Request.Context(), order); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// Update handles PUT /{orders}/:id. Only editable states accept it.
func (h *OrderHandler[T, CreateDTO, UpdateDTO]) Update(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req UpdateDTO
	if !h.BindJSON(c, &req) {
		return
	}

	existing, err := h.service.GetByID(ctx, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !h.CheckVersion(c, req, h.entityName, orderID, existing.GetVersion()) {
		return
	}

	updated := h.mapUpdateDTO(req, existing)
	if err := h.service.Update(ctx, updated); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Cancel handles POST /{orders}/:id/cancel.
func (h *OrderHandler[T, CreateDTO, UpdateDTO]) Cancel(c *gin.Context) {
	h.Action(h.service.Cancel)(c)
}

// Action adapts a lifecycle operation on one order to a handler that
// responds with the order as it stands afterwards.
func (h *OrderHandler[T, CreateDTO, UpdateDTO]) Action(fn func(ctx context.Context, orderID id.ID) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := h.ParamID(c, "id")
		if !ok {
			return
		}

		order, err := fn(c.Request.Context(), orderID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, order)
	}
}
