package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wms-budget/internal/client"
	"wms-budget/internal/domain"
	"wms-budget/internal/repository"
	"wms-budget/internal/service"
	"wms-budget/internal/store"
)

type stubEQ struct{}

func (stubEQ) GetSourceTask(_ context.Context, taskID string) (*domain.SourceTask, error) {
	if taskID != "T1" {
		return nil, domain.NewNotFoundError("source task", "task not found: id=%s", taskID)
	}
	return &domain.SourceTask{TaskID: taskID, TaskType: domain.TaskTypeEQList, TaskStatus: domain.TaskStatusApproved, ProductCode: "PRD"}, nil
}

func (stubEQ) ListFunctionDemand(context.Context, string) ([]client.FunctionDemandRow, error) {
	return []client.FunctionDemandRow{
		{PartnumberID: "pn-A", Function: "QA", DemandQty: 4},
		{PartnumberID: "pn-A", Function: "PE", DemandQty: 6},
	}, nil
}

func (stubEQ) ListOnHand(context.Context, string) ([]client.OnHandRow, error) {
	return []client.OnHandRow{{PartnumberID: "pn-A", NonDefectiveQty: 2}}, nil
}

type stubCatalog struct{}

func (stubCatalog) GetPartnumber(_ context.Context, id string) (*domain.Partnumber, error) {
	return &domain.Partnumber{PartnumberID: id, PartNo: "PN-" + id, Price: decimal.NewFromInt(10), Currency: "USD"}, nil
}

type stubRates struct{}

func (stubRates) GetExchangeRateToUSD(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	logger := zap.NewNop()
	demands := client.NewNettingDemandSource(stubEQ{}, logger)
	guard := service.NewAccessGuard(nil)
	hierarchy := service.NewBudgetHierarchy(guard, demands)
	reconciler := service.NewContentReconciler(guard, demands, stubCatalog{}, stubRates{}, logger)
	memStore := repository.NewMemoryStore()
	budgets := service.NewBudgetService(memStore, hierarchy, reconciler, store.NopPublisher{}, logger)
	contents := service.NewContentService(memStore, guard, stubCatalog{}, stubRates{}, logger)

	r := NewRouter(logger)
	r.RegisterHealthRoutes()
	r.RegisterBudgetRoutes(NewBudgetHandler(budgets, logger), NewContentHandler(contents, logger))
	return r
}

type caller struct {
	t       *testing.T
	router  *Router
	headers map[string]string
}

func (c caller) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func result(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	require.Equal(t, float64(ResultSuccess), body["code"], "message: %v", body["message"])
	m, ok := body["result"].(map[string]any)
	require.True(t, ok)
	return m
}

func adminCaller(t *testing.T, r *Router) caller {
	return caller{t: t, router: r, headers: map[string]string{
		"X-User-Id":      "u-1",
		"X-User-Account": "ll.admin",
		"X-User-Roles":   "LL",
	}}
}

func TestPilotBudgetFlow(t *testing.T) {
	r := newTestRouter(t)
	admin := adminCaller(t, r)

	rec, body := admin.do(http.MethodPost, "/budget/api/v1/budgets", map[string]any{
		"phase_id": "P1", "budget_type": "PILOT", "name": "Pilot", "source_task_id": "T1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	pilot := result(t, body)
	pilotID := pilot["budget_id"].(string)
	assert.Equal(t, "PILOT", pilot["budget_type"])
	assert.Equal(t, "T1", pilot["source_task_id"])
	assert.Equal(t, "ll.admin", pilot["created_by"])

	rec, body = admin.do(http.MethodGet, "/budget/api/v1/budgets/content/list?budget_id="+pilotID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := result(t, body)
	assert.Equal(t, float64(1), list["total"])
	line := list["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "pn-A", line["partnumber_id"])
	assert.Equal(t, float64(8), line["total_purchase_qty"])
	assert.Equal(t, float64(10), line["total_demand_qty"])
	assert.Equal(t, "100", line["usd_total"])
	assert.Len(t, line["demands"], 2)

	// PILOT 内容禁止人工修改
	rec, _ = admin.do(http.MethodPost, "/budget/api/v1/budgets/content", map[string]any{
		"budget_id": pilotID, "partnumber_id": "pn-B",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body = admin.do(http.MethodPost, "/budget/api/v1/budgets/synchronize/demand", map[string]any{"budget_id": pilotID})
	require.Equal(t, http.StatusOK, rec.Code)
	counters := result(t, body)
	assert.Equal(t, float64(0), counters["contents_inserted"])
	assert.Equal(t, float64(0), counters["demands_updated"])

	rec, body = admin.do(http.MethodPut, "/budget/api/v1/budgets", map[string]any{"budget_id": pilotID, "is_lock": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, result(t, body)["is_lock"])

	rec, body = admin.do(http.MethodPost, "/budget/api/v1/budgets/synchronize/demand", map[string]any{"budget_id": pilotID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, float64(ResultError), body["code"])

	rec, body = admin.do(http.MethodPost, "/budget/api/v1/budgets", map[string]any{
		"phase_id": "P1", "budget_type": "EXTRA", "name": "Extra", "pilot_budget_id": pilotID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, float64(ResultError), body["code"])

	rec, body = admin.do(http.MethodGet, "/budget/api/v1/budgets?budget_id="+pilotID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, result(t, body)["children"])
}

func TestAdditionalBudgetContentFlow(t *testing.T) {
	r := newTestRouter(t)
	admin := adminCaller(t, r)

	_, body := admin.do(http.MethodPost, "/budget/api/v1/budgets", map[string]any{
		"phase_id": "P1", "budget_type": "ADDITIONAL", "name": "Additional",
	})
	budgetID := result(t, body)["budget_id"].(string)

	rec, body := admin.do(http.MethodPost, "/budget/api/v1/budgets/content", map[string]any{
		"budget_id": budgetID, "partnumber_id": "pn-X", "buyer": "alice", "total_purchase_qty": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	content := result(t, body)
	contentID := content["content_id"].(string)
	assert.Equal(t, "PN-pn-X", content["part_no"])
	assert.Equal(t, "alice", content["buyer"])
	assert.Nil(t, content["counterpart"])

	rec, body = admin.do(http.MethodPost, "/budget/api/v1/budgets/demand", map[string]any{
		"content_id": contentID, "function": "QA", "demand_qty": 5,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	demandID := result(t, body)["demand_id"].(string)

	rec, _ = admin.do(http.MethodPost, "/budget/api/v1/budgets/demand", map[string]any{
		"content_id": contentID, "function": "QA", "demand_qty": 0,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// 其它 function 的用户无权修改
	rd := caller{t: t, router: r, headers: map[string]string{"X-User-Id": "u-rd", "X-User-Roles": "USER", "X-User-Functions": "RD"}}
	rec, _ = rd.do(http.MethodPut, "/budget/api/v1/budgets/content", map[string]any{"content_id": contentID, "buyer": "bob"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = admin.do(http.MethodGet, "/budget/api/v1/budgets/export?budget_id="+budgetID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())

	rec, body = admin.do(http.MethodDelete, "/budget/api/v1/budgets/demand?demand_id="+demandID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, result(t, body)["success"])

	_, body = admin.do(http.MethodGet, "/budget/api/v1/budgets/content/list?budget_id="+budgetID, nil)
	assert.Equal(t, float64(0), result(t, body)["total"])

	rec, _ = admin.do(http.MethodDelete, "/budget/api/v1/budgets?budget_id="+budgetID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = admin.do(http.MethodGet, "/budget/api/v1/budgets?budget_id="+budgetID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestErrors(t *testing.T) {
	r := newTestRouter(t)

	anonymous := caller{t: t, router: r}
	rec, body := anonymous.do(http.MethodPost, "/budget/api/v1/budgets", map[string]any{"budget_type": "ADDITIONAL"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "error", body["type"])

	admin := adminCaller(t, r)
	rec, _ = admin.do(http.MethodGet, "/budget/api/v1/budgets", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = admin.do(http.MethodPatch, "/budget/api/v1/budgets", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = admin.do(http.MethodPost, "/budget/api/v1/budgets", map[string]any{
		"phase_id": "P1", "budget_type": "PILOT", "name": "Pilot", "source_task_id": "T-missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/budget/api/v1/budgets", bytes.NewBufferString("{bad"))
	req.Header.Set("X-User-Id", "u-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec, body = admin.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", result(t, body)["status"])
}

func TestCreateBudget_ForeignLinkageIs422(t *testing.T) {
	r := newTestRouter(t)
	admin := adminCaller(t, r)

	rec, body := admin.do(http.MethodPost, "/budget/api/v1/budgets", map[string]any{
		"phase_id": "P1", "budget_type": "PILOT", "name": "Pilot", "source_task_id": "T1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	pilotID := result(t, body)["budget_id"].(string)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"pilot with pilot_budget_id", map[string]any{
			"phase_id": "P1", "budget_type": "PILOT", "name": "Pilot 2", "source_task_id": "T1", "pilot_budget_id": pilotID,
		}},
		{"additional with source_task_id", map[string]any{
			"phase_id": "P1", "budget_type": "ADDITIONAL", "name": "Add", "source_task_id": "T1",
		}},
		{"extra with source_task_id", map[string]any{
			"phase_id": "P1", "budget_type": "EXTRA", "name": "Extra", "pilot_budget_id": pilotID, "source_task_id": "T1",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := admin.do(http.MethodPost, "/budget/api/v1/budgets", tt.payload)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, "error", body["type"])
		})
	}
}

func TestIdentityFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Account", "qa.user")
	req.Header.Set("X-User-Roles", "USER, ,LL")
	req.Header.Set("X-User-Functions", "QA,PE")

	id, err := identityFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "qa.user", id.Actor())
	assert.Equal(t, []string{"USER", "LL"}, id.Roles)
	assert.Equal(t, []string{"QA", "PE"}, id.Functions)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.NewValidationError("x", "bad")))
	assert.Equal(t, http.StatusConflict, statusFor(domain.NewConflictError("x", "locked")))
	assert.Equal(t, http.StatusForbidden, statusFor(domain.NewForbiddenError("x", "no")))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.NewNotFoundError("x", "missing")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
