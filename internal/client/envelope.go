package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"wms-budget/internal/domain"
)

// 上游服务与本服务使用同一响应格式：code=2000 表示成功
const resultSuccess = 2000

type envelope[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")
}

// getResult 执行 GET 并拆出 result；404 映射为 NotFoundError
func getResult[T any](req *resty.Request, entity, id, path string) (T, error) {
	var env envelope[T]
	var zero T

	resp, err := req.SetResult(&env).Get(path)
	if err != nil {
		return zero, fmt.Errorf("failed to call %s service: %w", entity, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return zero, domain.NewNotFoundError(entity, "%s not found: id=%s", entity, id)
	}
	if resp.IsError() {
		return zero, fmt.Errorf("%s service returned HTTP %d", entity, resp.StatusCode())
	}
	if env.Code != resultSuccess {
		return zero, fmt.Errorf("%s service error: %s (code: %d)", entity, env.Message, env.Code)
	}
	return env.Result, nil
}
