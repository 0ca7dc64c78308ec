package httpapi

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"wms-budget/internal/export"
	"wms-budget/internal/service"
)

// ContentHandler 预算内容 / 需求 Handler
type ContentHandler struct {
	contents *service.ContentService
	logger   *zap.Logger
}

// NewContentHandler 创建预算内容 Handler
func NewContentHandler(contents *service.ContentService, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{contents: contents, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *ContentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/budget/api/v1/budgets/content" && r.Method == http.MethodPost:
		h.AddContent(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/content" && r.Method == http.MethodPut:
		h.UpdateContent(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/content" && r.Method == http.MethodDelete:
		h.DeleteContent(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/content/list" && r.Method == http.MethodGet:
		h.ListContentLines(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/demand" && (r.Method == http.MethodPost || r.Method == http.MethodPut):
		h.UpsertDemand(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/demand" && r.Method == http.MethodDelete:
		h.DeleteDemand(w, r)
	case r.URL.Path == "/budget/api/v1/budgets/export" && r.Method == http.MethodGet:
		h.ExportBudget(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// AddContent 人工新增内容行
func (h *ContentHandler) AddContent(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "AddContent", err)
		return
	}
	var req service.AddContentRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	content, err := h.contents.AddContent(r.Context(), identity, req)
	if err != nil {
		writeError(w, h.logger, "AddContent", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toContentDTO(content)))
}

// UpdateContent 修改内容行描述性字段
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "UpdateContent", err)
		return
	}
	var req service.UpdateContentRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	content, err := h.contents.UpdateContent(r.Context(), identity, req)
	if err != nil {
		writeError(w, h.logger, "UpdateContent", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toContentDTO(content)))
}

// DeleteContent 删除内容行
func (h *ContentHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "DeleteContent", err)
		return
	}
	contentID, err := requiredQuery(r, "content_id")
	if err != nil {
		writeError(w, h.logger, "DeleteContent", err)
		return
	}
	if err := h.contents.DeleteContent(r.Context(), identity, contentID); err != nil {
		writeError(w, h.logger, "DeleteContent", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true, "content_id": contentID}))
}

// ListContentLines 查询预算下的内容行、需求拆分与估值
func (h *ContentHandler) ListContentLines(w http.ResponseWriter, r *http.Request) {
	budgetID, err := requiredQuery(r, "budget_id")
	if err != nil {
		writeError(w, h.logger, "ListContentLines", err)
		return
	}
	lines, err := h.contents.ListContentLines(r.Context(), budgetID)
	if err != nil {
		writeError(w, h.logger, "ListContentLines", err)
		return
	}
	out := make([]contentLineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, toContentLineDTO(l))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": len(out),
	}))
}

// UpsertDemand 新增或修改 function 需求
func (h *ContentHandler) UpsertDemand(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "UpsertDemand", err)
		return
	}
	var req service.UpsertDemandRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	demand, err := h.contents.UpsertDemand(r.Context(), identity, req)
	if err != nil {
		writeError(w, h.logger, "UpsertDemand", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(toDemandDTO(demand)))
}

// DeleteDemand 删除需求（最后一条需求删除时内容行一并删除）
func (h *ContentHandler) DeleteDemand(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r)
	if err != nil {
		writeError(w, h.logger, "DeleteDemand", err)
		return
	}
	demandID, err := requiredQuery(r, "demand_id")
	if err != nil {
		writeError(w, h.logger, "DeleteDemand", err)
		return
	}
	if err := h.contents.DeleteDemand(r.Context(), identity, demandID); err != nil {
		writeError(w, h.logger, "DeleteDemand", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true, "demand_id": demandID}))
}

// ExportBudget 导出预算内容 xlsx
func (h *ContentHandler) ExportBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	budgetID, err := requiredQuery(r, "budget_id")
	if err != nil {
		writeError(w, h.logger, "ExportBudget", err)
		return
	}
	budget, lines, err := h.contents.ExportLines(ctx, budgetID)
	if err != nil {
		writeError(w, h.logger, "ExportBudget", err)
		return
	}

	excelData, err := export.GenerateBudgetContentExport(budget, lines)
	if err != nil {
		h.logger.Error("GenerateBudgetContentExport failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=budget-%s.xlsx", budgetID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(excelData)
}
