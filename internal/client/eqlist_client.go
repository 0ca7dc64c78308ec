package client

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wms-budget/internal/domain"
)

// FunctionDemandRow EQ 清单中某 function 对料号的需求
type FunctionDemandRow struct {
	PartnumberID string `json:"partnumber_id"`
	Function     string `json:"function"`
	DemandQty    int    `json:"demand_qty"`
}

// OnHandRow 产品下料号的良品库存
type OnHandRow struct {
	PartnumberID    string `json:"partnumber_id"`
	NonDefectiveQty int    `json:"non_defective_qty"`
}

// EQListClient EQ 清单服务客户端
type EQListClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewEQListClient 创建 EQ 清单服务客户端
func NewEQListClient(baseURL string, logger *zap.Logger) *EQListClient {
	return &EQListClient{
		httpClient: newRestyClient(baseURL, 15*time.Second),
		logger:     logger,
	}
}

// GetSourceTask 获取 EQ 主任务
func (c *EQListClient) GetSourceTask(ctx context.Context, taskID string) (*domain.SourceTask, error) {
	task, err := getResult[domain.SourceTask](
		c.httpClient.R().SetContext(ctx).SetPathParam("taskID", taskID),
		"source task", taskID, "/eq/api/v1/tasks/{taskID}",
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListFunctionDemand 获取主任务下所有已审批子任务的 function 需求
func (c *EQListClient) ListFunctionDemand(ctx context.Context, taskID string) ([]FunctionDemandRow, error) {
	rows, err := getResult[[]FunctionDemandRow](
		c.httpClient.R().SetContext(ctx).SetPathParam("taskID", taskID),
		"source task", taskID, "/eq/api/v1/tasks/{taskID}/partnumber-demand",
	)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("EQ function demand fetched",
		zap.String("task_id", taskID),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// ListOnHand 获取产品的良品库存
func (c *EQListClient) ListOnHand(ctx context.Context, productCode string) ([]OnHandRow, error) {
	return getResult[[]OnHandRow](
		c.httpClient.R().SetContext(ctx).SetPathParam("productCode", productCode),
		"product", productCode, "/eq/api/v1/products/{productCode}/on-hand",
	)
}
