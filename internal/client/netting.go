package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wms-budget/internal/domain"
)

// EQListSource 原始 EQ 数据来源
type EQListSource interface {
	GetSourceTask(ctx context.Context, taskID string) (*domain.SourceTask, error)
	ListFunctionDemand(ctx context.Context, taskID string) ([]FunctionDemandRow, error)
	ListOnHand(ctx context.Context, productCode string) ([]OnHandRow, error)
}

// NettingDemandSource 汇总 function 需求并扣除良品库存，只保留净需求 > 0 的料号
type NettingDemandSource struct {
	eq     EQListSource
	logger *zap.Logger
}

// NewNettingDemandSource 创建 NettingDemandSource
func NewNettingDemandSource(eq EQListSource, logger *zap.Logger) *NettingDemandSource {
	return &NettingDemandSource{eq: eq, logger: logger}
}

func (s *NettingDemandSource) GetSourceTask(ctx context.Context, taskID string) (*domain.SourceTask, error) {
	return s.eq.GetSourceTask(ctx, taskID)
}

// GetPartnumberDemand 料号顺序与 EQ 清单中首次出现的顺序一致
func (s *NettingDemandSource) GetPartnumberDemand(ctx context.Context, taskID string) ([]domain.PartDemand, error) {
	task, err := s.eq.GetSourceTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.TaskType != domain.TaskTypeEQList {
		return nil, domain.NewValidationError("source task", "task %s is %s, expected %s", taskID, task.TaskType, domain.TaskTypeEQList)
	}
	if !task.SubTasksApproved() {
		return nil, domain.NewValidationError("source task", "approval sub-tasks of task %s are not all complete", taskID)
	}

	rows, err := s.eq.ListFunctionDemand(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list function demand: %w", err)
	}
	onHandRows, err := s.eq.ListOnHand(ctx, task.ProductCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list on-hand quantity: %w", err)
	}
	onHand := make(map[string]int, len(onHandRows))
	for _, r := range onHandRows {
		onHand[r.PartnumberID] += r.NonDefectiveQty
	}

	type agg struct {
		total     int
		functions []domain.FunctionDemand
		index     map[string]int
	}
	var order []string
	parts := map[string]*agg{}
	for _, r := range rows {
		a, ok := parts[r.PartnumberID]
		if !ok {
			a = &agg{index: map[string]int{}}
			parts[r.PartnumberID] = a
			order = append(order, r.PartnumberID)
		}
		a.total += r.DemandQty
		if i, ok := a.index[r.Function]; ok {
			a.functions[i].DemandQty += r.DemandQty
			continue
		}
		a.index[r.Function] = len(a.functions)
		a.functions = append(a.functions, domain.FunctionDemand{Function: r.Function, DemandQty: r.DemandQty})
	}

	out := make([]domain.PartDemand, 0, len(order))
	for _, pnID := range order {
		a := parts[pnID]
		net := a.total - onHand[pnID]
		if net <= 0 {
			continue
		}
		out = append(out, domain.PartDemand{
			PartnumberID:       pnID,
			TotalDemandQty:     net,
			OnHandQty:          onHand[pnID],
			FunctionDemandList: a.functions,
		})
	}

	s.logger.Info("Partnumber demand computed",
		zap.String("task_id", taskID),
		zap.String("product_code", task.ProductCode),
		zap.Int("partnumbers", len(order)),
		zap.Int("net_positive", len(out)),
	)
	return out, nil
}
