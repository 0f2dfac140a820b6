package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millstock/internal/app/apptest"
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/catalogs/product"
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/documents/sales"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/registers/stock"
	"millstock/internal/infrastructure/http/v1/dto"
	"millstock/internal/infrastructure/idempotency"
	"millstock/internal/infrastructure/http/v1/middleware"
	"millstock/pkg/logger"
)

type apiClient struct {
	t      *testing.T
	router *gin.Engine

	// key is sent as X-Idempotency-Key when set
	key string
}

func newAPI(t *testing.T) (*apiClient, *apptest.Fixture) {
	f := apptest.New(t)
	r := NewRouter(RouterConfig{
		App:         f.App,
		Logger:      logger.NewNop(),
		Idempotency: idempotency.NewMemoryStore(time.Hour),
	})
	return &apiClient{t: t, router: r}, f
}

// call sends body as JSON and decodes the response into out when non-nil.
func (a *apiClient) call(method, path string, body any, out any) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderOperatorName, "张三")
	if a.key != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, a.key)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Code
}

func TestRouter_Health(t *testing.T) {
	api, _ := newAPI(t)

	w := api.call(http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.call(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProductCatalog(t *testing.T) {
	api, f := newAPI(t)

	var created product.Product
	w := api.call(http.MethodPost, "/api/v1/products", dto.CreateProductRequest{
		Code: "FB-TC", Name: "涤棉府绸", Unit: "米",
	}, &created)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "FB-TC", created.Code)

	w = api.call(http.MethodPost, "/api/v1/products", dto.CreateProductRequest{
		Code: "FB-TC", Name: "重复", Unit: "米",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeDuplicate, errorCode(t, w))

	name := "涤棉府绸 (新)"
	var updated product.Product
	w = api.call(http.MethodPut, "/api/v1/products/"+created.ID.String(), dto.UpdateProductRequest{
		Versioned: dto.Versioned{Version: created.Version},
		Name:      &name,
	}, &updated)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, "米", updated.Unit)

	// the edit above moved the version on
	w = api.call(http.MethodPut, "/api/v1/products/"+created.ID.String(), dto.UpdateProductRequest{
		Versioned: dto.Versioned{Version: created.Version},
		Name:      &name,
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeConcurrentModification, errorCode(t, w))

	var colors dto.ItemsResponse
	w = api.call(http.MethodGet, "/api/v1/products/"+f.Fabric.ID.String()+"/colors", nil, &colors)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, colors.Items, 2)

	w = api.call(http.MethodGet, "/api/v1/products/not-an-id", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, errorCode(t, w))
}

func TestRouter_PurchaseToSettlement(t *testing.T) {
	api, f := newAPI(t)

	var order purchase.Order
	w := api.call(http.MethodPost, "/api/v1/purchase-orders", dto.PurchaseOrderRequest{
		SupplierID: f.Supplier.ID,
		PaidAmount: apptest.M("250"),
		Lines: []dto.PurchaseLine{
			{ProductID: f.Fabric.ID, ColorID: f.Red.ID, BatchCode: "R01-2601", Quantity: apptest.Q("100"), UnitPrice: apptest.M("12.5")},
		},
	}, &order)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, purchase.StatusDraft, order.Status)
	assert.Equal(t, "张三", order.Operator)

	base := "/api/v1/purchase-orders/" + order.ID.String()
	w = api.call(http.MethodPost, base+"/review", nil, &order)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, purchase.StatusReviewed, order.Status)

	w = api.call(http.MethodPost, base+"/commit", nil, &order)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, purchase.StatusReceived, order.Status)
	require.NotNil(t, order.Lines[0].BatchID)
	batchID := order.Lines[0].BatchID.String()

	// committed orders are final
	w = api.call(http.MethodPost, base+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeStateTransition, errorCode(t, w))

	var trail []audit.Entry
	w = api.call(http.MethodGet, "/api/v1/audit/purchase_order/"+order.ID.String(), nil, &trail)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, trail)
	assert.Equal(t, audit.ActionCommit, trail[0].Action)
	assert.Equal(t, "张三", trail[0].Operator)
	assert.NotEmpty(t, trail[0].RequestID)

	w = api.call(http.MethodGet, "/api/v1/audit/nonsense/"+order.ID.String(), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var batch stock.Batch
	w = api.call(http.MethodGet, "/api/v1/batches/"+batchID, nil, &batch)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, apptest.Q("100"), batch.StockQuantity)

	var check dto.CheckStockResponse
	w = api.call(http.MethodGet, "/api/v1/batches/"+batchID+"/check?quantity=120", nil, &check)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, check.Enough)
	assert.Equal(t, apptest.Q("100"), check.Available)

	var accounts dto.ListResponse
	var items []*ledger.Account
	accounts.Items = &items
	w = api.call(http.MethodGet, "/api/v1/accounts?kind=payable&orderId="+order.ID.String(), nil, &accounts)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, items, 1)
	apptest.AssertMoney(t, "1000", items[0].UnpaidAmount)

	w = api.call(http.MethodPost, fmt.Sprintf("/api/v1/accounts/%s/payments", items[0].ID), dto.PaymentRequest{
		Amount: apptest.M("1000"),
		Remark: "月结",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var account ledger.Account
	w = api.call(http.MethodGet, "/api/v1/accounts/"+items[0].ID.String(), nil, &account)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ledger.StatusSettled, account.Status)

	// overpayment is refused
	w = api.call(http.MethodPost, fmt.Sprintf("/api/v1/accounts/%s/payments", items[0].ID), dto.PaymentRequest{
		Amount: apptest.M("1"),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_SalesRespectsStock(t *testing.T) {
	api, f := newAPI(t)
	b := f.Receive(f.Red, "R01-2602", "30", "10")

	var order sales.Order
	w := api.call(http.MethodPost, "/api/v1/sales-orders", dto.SalesOrderRequest{
		CustomerID: f.Customer.ID,
		Lines:      []dto.SalesLine{{BatchID: b.ID, Quantity: apptest.Q("40"), UnitPrice: apptest.M("20")}},
	}, &order)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.call(http.MethodPost, "/api/v1/sales-orders/"+order.ID.String()+"/commit", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInsufficientStock, errorCode(t, w))
	f.AssertStock(b.ID, "30")

	var updated sales.Order
	w = api.call(http.MethodPut, "/api/v1/sales-orders/"+order.ID.String(), dto.UpdateSalesOrderRequest{
		SalesOrderRequest: dto.SalesOrderRequest{
			CustomerID: f.Customer.ID,
			Lines:      []dto.SalesLine{{BatchID: b.ID, Quantity: apptest.Q("25"), UnitPrice: apptest.M("20")}},
		},
	}, &updated)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.call(http.MethodPost, "/api/v1/sales-orders/"+order.ID.String()+"/commit", nil, &updated)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, sales.StatusShipped, updated.Status)
	f.AssertStock(b.ID, "5")

	var movements struct {
		Items []stock.Movement `json:"items"`
	}
	w = api.call(http.MethodGet, "/api/v1/batches/"+b.ID.String()+"/movements", nil, &movements)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, movements.Items, 2)
	assert.Equal(t, apptest.Q("-25"), movements.Items[1].Delta)
	assert.Equal(t, stock.RecorderSales, movements.Items[1].RecorderType)
}

func TestRouter_ManualAdjustNeedsReason(t *testing.T) {
	api, f := newAPI(t)
	b := f.Receive(f.Blue, "B01-2601", "10", "8")

	w := api.call(http.MethodPost, "/api/v1/batches/"+b.ID.String()+"/adjust", map[string]any{"delta": "-2"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var out stock.Batch
	w = api.call(http.MethodPost, "/api/v1/batches/"+b.ID.String()+"/adjust", dto.AdjustStockRequest{
		Delta: apptest.Q("-2"), Reason: "水渍",
	}, &out)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, apptest.Q("8"), out.StockQuantity)

	w = api.call(http.MethodPost, "/api/v1/batches/"+b.ID.String()+"/adjust", dto.AdjustStockRequest{
		Delta: apptest.Q("-9"), Reason: "出错",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	f.AssertStock(b.ID, "8")
}

func TestRouter_CycleCount(t *testing.T) {
	api, f := newAPI(t)
	b := f.Receive(f.Red, "R01-2603", "50", "10")

	var order cyclecount.Order
	w := api.call(http.MethodPost, "/api/v1/cycle-counts", dto.CycleCountRequest{
		BatchIDs: []id.ID{b.ID},
	}, &order)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	base := "/api/v1/cycle-counts/" + order.ID.String()
	w = api.call(http.MethodPost, base+"/start", nil, &order)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, cyclecount.StatusCounting, order.Status)

	w = api.call(http.MethodPost, base+"/counts", dto.RecordCountRequest{
		BatchID: b.ID, Counted: apptest.Q("47"), Remark: "短码",
	}, &order)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var adjustments dto.ItemsResponse
	w = api.call(http.MethodPost, base+"/complete", nil, &adjustments)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, adjustments.Items, 1)
	f.AssertStock(b.ID, "47")

	var list dto.ListResponse
	w = api.call(http.MethodGet, "/api/v1/adjustments?status="+url.QueryEscape(string(adjustment.StatusCompleted)), nil, &list)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, list.TotalCount)
}

func TestRouter_RetriedPaymentAppliesOnce(t *testing.T) {
	api, f := newAPI(t)

	o := purchase.NewOrder("", f.Supplier.ID)
	o.AddLine(f.Fabric.ID, f.Red.ID, "R01-2602", apptest.Q("10"), apptest.M("30"))
	require.NoError(t, f.App.Purchases.Create(f.Ctx, o))
	_, err := f.App.Purchases.Commit(f.Ctx, o.ID)
	require.NoError(t, err)
	account := f.Account(o.ID)
	require.NotNil(t, account)

	path := fmt.Sprintf("/api/v1/accounts/%s/payments", account.ID)
	api.key = "pay-" + account.ID.String()

	var first, second ledger.Settlement
	w := api.call(http.MethodPost, path, dto.PaymentRequest{Amount: apptest.M("100")}, &first)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = api.call(http.MethodPost, path, dto.PaymentRequest{Amount: apptest.M("100")}, &second)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "true", w.Header().Get(middleware.HeaderIdempotentReplay))
	assert.Equal(t, first.ID, second.ID)

	got, err := f.App.Ledger.GetAccount(f.Ctx, account.ID)
	require.NoError(t, err)
	apptest.AssertMoney(t, "100", got.PaidAmount)
	apptest.AssertMoney(t, "200", got.UnpaidAmount)
}
