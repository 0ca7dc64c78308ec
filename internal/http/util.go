package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"wms-budget/internal/domain"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// statusFor 业务错误类别 -> HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError 业务错误返回原始信息，其它错误记录日志后返回通用信息
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
		writeJSON(w, status, Fail("internal error"))
		return
	}
	logger.Info(op+" rejected", zap.Int("status", status), zap.String("reason", err.Error()))
	writeJSON(w, status, Fail(err.Error()))
}

func requiredQuery(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return "", domain.NewValidationError("request", "%s is required", key)
	}
	return v, nil
}

// splitList 逗号分隔，去空白与空项
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// identityFromRequest 身份由网关校验 token 后通过请求头传入
func identityFromRequest(r *http.Request) (domain.Identity, error) {
	id := domain.Identity{
		UserID:    strings.TrimSpace(r.Header.Get("X-User-Id")),
		Account:   strings.TrimSpace(r.Header.Get("X-User-Account")),
		Roles:     splitList(r.Header.Get("X-User-Roles")),
		Functions: splitList(r.Header.Get("X-User-Functions")),
	}
	if id.UserID == "" && id.Account == "" {
		return id, domain.NewForbiddenError("identity", "X-User-Id or X-User-Account header is required")
	}
	return id, nil
}
