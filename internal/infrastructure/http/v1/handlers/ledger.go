package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/domain/ledger"
	"millstock/internal/infrastructure/http/v1/dto"
)

// LedgerHandler serves receivable/payable accounts and their settlements.
type LedgerHandler struct {
	*BaseHandler
	ledger      *ledger.Service
	settlements *ledger.SettlementService
}

// NewLedgerHandler creates a ledger handler.
func NewLedgerHandler(base *BaseHandler, ledgerSvc *ledger.Service, settlements *ledger.SettlementService) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, ledger: ledgerSvc, settlements: settlements}
}

// List handles GET /accounts?kind=&counterpartyId=&orderId=&status=.
func (h *LedgerHandler) List(c *gin.Context) {
	filter := ledger.AccountFilter{
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if v := c.Query("kind"); v != "" {
		kind := ledger.Kind(v)
		if !kind.IsValid() {
			h.Error(c, apperror.NewValidation("invalid account kind").WithDetail("field", "kind").WithDetail("value", v))
			return
		}
		filter.Kind = &kind
	}
	if v := c.Query("status"); v != "" {
		status := ledger.Status(v)
		filter.Status = &status
	}

	var ok bool
	if filter.CounterpartyID, ok = h.QueryID(c, "counterpartyId"); !ok {
		return
	}
	if filter.OrderID, ok = h.QueryID(c, "orderId"); !ok {
		return
	}

	result, err := h.ledger.ListAccounts(c.Request.Context(), filter)
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

// Get handles GET /accounts/:id.
func (h *LedgerHandler) Get(c *gin.Context) {
	accountID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	a, err := h.ledger.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// Settlements handles GET /accounts/:id/settlements.
func (h *LedgerHandler) Settlements(c *gin.Context) {
	accountID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	items, err := h.ledger.ListSettlements(c.Request.Context(), accountID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: items})
}

// RegisterPayment handles POST /accounts/:id/payments.
func (h *LedgerHandler) RegisterPayment(c *gin.Context) {
	accountID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	s, err := h.settlements.RegisterPayment(c.Request.Context(), accountID, req.Amount, dto.Meta(req.Date, "", req.Remark))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, s)
}

// RegisterBatchPayment handles POST /accounts/batch-payments.
func (h *LedgerHandler) RegisterBatchPayment(c *gin.Context) {
	var req dto.BatchPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	items, err := h.settlements.RegisterBatchPayment(c.Request.Context(), req.ToEntries(), dto.Meta(req.Date, "", req.Remark))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.ItemsResponse{Items: items})
}
