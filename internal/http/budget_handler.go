package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"wms-budget/internal/domain"
	"wms-budget/internal/service"
)

// BudgetHandler 预算管理 Handler
type BudgetHandler struct {
	budgets *service.BudgetService
	logger  *zap.Logger
}

// NewBudgetHandler 创建预算管理 Handler
func NewBudgetHandler(budgets *service.BudgetService, logger *zap.Logger) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *BudgetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/budget/api/v1/budgets" && r.Method == http.MethodPost:
		h.CreateBudget(w, r)
	case r.URL.Path == "/budget/api/v1/budgets" && r.Method == http.MethodGet:
		h.GetBudget(w, r)
	case r.URL.Path == "/budget/api/v1/budgets" && r.Method == http.MethodPut:
		h.UpdateBudget(w, r)
	case r.URL.Path == "/budget/api/v1/budgets" && r.Method == http.MethodDelete:
		h.DeleteBudget(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/synchronize/demand" && r.Method == http.MethodPost:
		h.SynchronizeDemand(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/synchronize/unit-price" && r.Method == http.MethodPost:
		h.SynchronizeUnitPrice(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// createBudgetPayload PILOT 使用 source_task_id，EXTRA 使用 pilot_budget_id
type createBudgetPayload struct {
	PhaseID       string `json:"phase_id"`
	BudgetType    string `json:"budget_type"`
	Name          string `json:"name"`
	SourceTaskID  string `json:"source_task_id"`
	PilotBudgetID string `json:"pilot_budget_id"`
}

type budgetIDPayload struct {
	BudgetID string `json:"budget_id"`
}

// CreateBudget 创建预算
func (h *BudgetHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "CreateBudget", err)
		return
	}

	var payload createBudgetPayload
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	var budget *domain.Budget
	if domain.BudgetType(strings.ToUpper(strings.TrimSpace(payload.BudgetType))) == domain.BudgetTypePilot {
		budget, err = h.budgets.CreatePilotBudget(ctx, identity, service.CreatePilotBudgetRequest{
			PhaseID:       payload.PhaseID,
			SourceTaskID:  payload.SourceTaskID,
			PilotBudgetID: payload.PilotBudgetID,
			Name:          payload.Name,
		})
	} else {
		budget, err = h.budgets.CreateExtraOrAdditionalBudget(ctx, identity, service.CreateBudgetRequest{
			PhaseID:       payload.PhaseID,
			PilotBudgetID: payload.PilotBudgetID,
			SourceTaskID:  payload.SourceTaskID,
			BudgetType:    payload.BudgetType,
			Name:          payload.Name,
		})
	}
	if err != nil {
		writeError(w, h.logger, "CreateBudget", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toBudgetDTO(budget)))
}

// GetBudget 查询预算（PILOT 附带 children）
func (h *BudgetHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	budgetID, err := requiredQuery(r, "budget_id")
	if err != nil {
		writeError(w, h.logger, "GetBudget", err)
		return
	}
	detail, err := h.budgets.GetBudget(r.Context(), budgetID)
	if err != nil {
		writeError(w, h.logger, "GetBudget", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toBudgetDetailDTO(detail)))
}

// UpdateBudget 更新名称 / 锁定状态
func (h *BudgetHandler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "UpdateBudget", err)
		return
	}
	var req service.UpdateBudgetRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	budget, err := h.budgets.UpdateBudget(r.Context(), identity, req)
	if err != nil {
		writeError(w, h.logger, "UpdateBudget", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toBudgetDTO(budget)))
}

// DeleteBudget 删除预算
func (h *BudgetHandler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "DeleteBudget", err)
		return
	}
	budgetID, err := requiredQuery(r, "budget_id")
	if err != nil {
		writeError(w, h.logger, "DeleteBudget", err)
		return
	}
	if err := h.budgets.DeleteBudget(r.Context(), identity, budgetID); err != nil {
		writeError(w, h.logger, "DeleteBudget", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true, "budget_id": budgetID}))
}

// SynchronizeDemand 按源任务最新需求重新同步 PILOT 预算
func (h *BudgetHandler) SynchronizeDemand(w http.ResponseWriter, r *http.Request) {
	h.synchronize(w, r, "SynchronizeDemand", h.budgets.ResyncDemand)
}

// SynchronizeUnitPrice 按料号主数据刷新单价与汇率
func (h *BudgetHandler) SynchronizeUnitPrice(w http.ResponseWriter, r *http.Request) {
	h.synchronize(w, r, "SynchronizeUnitPrice", h.budgets.ResyncPricing)
}

type resyncFunc func(ctx context.Context, identity domain.Identity, budgetID string) (*service.ReconcileResult, error)

func (h *BudgetHandler) synchronize(w http.ResponseWriter, r *http.Request, op string, fn resyncFunc) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, op, err)
		return
	}
	var payload budgetIDPayload
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if payload.BudgetID == "" {
		payload.BudgetID = strings.TrimSpace(r.URL.Query().Get("budget_id"))
	}
	if payload.BudgetID == "" {
		writeError(w, h.logger, op, domain.NewValidationError("request", "budget_id is required"))
		return
	}
	result, err := fn(r.Context(), identity, payload.BudgetID)
	if err != nil {
		writeError(w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}
