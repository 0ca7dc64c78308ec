package service

import (
	"context"

	"github.com/shopspring/decimal"

	"wms-budget/internal/domain"
)

// DemandSource EQ 需求来源（外部系统）
type DemandSource interface {
	// GetSourceTask 获取 EQ 主任务；不存在返回 domain.ErrNotFound
	GetSourceTask(ctx context.Context, taskID string) (*domain.SourceTask, error)

	// GetPartnumberDemand 获取料号净需求快照（只包含净需求 > 0 的料号）
	GetPartnumberDemand(ctx context.Context, taskID string) ([]domain.PartDemand, error)
}

// PartnumberCatalog 料号主数据
type PartnumberCatalog interface {
	GetPartnumber(ctx context.Context, partnumberID string) (*domain.Partnumber, error)
}

// ExchangeRates 汇率查询（币种 → USD）
type ExchangeRates interface {
	GetExchangeRateToUSD(ctx context.Context, currency string) (decimal.Decimal, error)
}

// EventPublisher 预算事件发布（事务提交后调用）
type EventPublisher interface {
	Publish(ctx context.Context, event domain.BudgetEvent) error
}
