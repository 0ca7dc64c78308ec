package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"wms-budget/internal/domain"
	"wms-budget/internal/repository"
)

// BudgetService 预算服务
type BudgetService struct {
	store      repository.Store
	hierarchy  *BudgetHierarchy
	reconciler *ContentReconciler
	publisher  EventPublisher
	logger     *zap.Logger
}

// NewBudgetService 创建预算服务
func NewBudgetService(store repository.Store, hierarchy *BudgetHierarchy, reconciler *ContentReconciler, publisher EventPublisher, logger *zap.Logger) *BudgetService {
	return &BudgetService{
		store:      store,
		hierarchy:  hierarchy,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger,
	}
}

// CreatePilotBudgetRequest 创建初版预算请求
type CreatePilotBudgetRequest struct {
	PhaseID       string `json:"phase_id"`
	SourceTaskID  string `json:"source_task_id"`
	PilotBudgetID string `json:"pilot_budget_id,omitempty"` // PILOT 不允许携带，带上即拒绝
	Name          string `json:"name"`
}

// CreateBudgetRequest 创建追加 / 独立预算请求
type CreateBudgetRequest struct {
	PhaseID       string `json:"phase_id"`
	PilotBudgetID string `json:"pilot_budget_id,omitempty"` // 仅 EXTRA
	SourceTaskID  string `json:"source_task_id,omitempty"`  // 不允许携带，带上即拒绝
	BudgetType    string `json:"budget_type"`
	Name          string `json:"name"`
}

// UpdateBudgetRequest 更新预算请求（nil 字段不修改）
type UpdateBudgetRequest struct {
	BudgetID   string  `json:"budget_id"`
	Name       *string `json:"name,omitempty"`
	IsLock     *bool   `json:"is_lock,omitempty"`
	BudgetType *string `json:"budget_type,omitempty"`
}

// BudgetDetail 预算详情，Children 为绑定的 EXTRA 预算
type BudgetDetail struct {
	*domain.Budget
	Children []*domain.Budget `json:"children"`
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// CreatePilotBudget 创建初版预算并根据 EQ 需求生成内容
func (s *BudgetService) CreatePilotBudget(ctx context.Context, identity domain.Identity, req CreatePilotBudgetRequest) (*domain.Budget, error) {
	budget := &domain.Budget{
		Name:          strings.TrimSpace(req.Name),
		PhaseID:       strings.TrimSpace(req.PhaseID),
		BudgetType:    domain.BudgetTypePilot,
		SourceTaskID:  nullString(req.SourceTaskID),
		PilotBudgetID: nullString(req.PilotBudgetID),
		CreatedBy:     identity.Actor(),
	}

	var result *ReconcileResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.hierarchy.ValidateOnInsert(ctx, tx, budget); err != nil {
			return err
		}
		if err := tx.Budgets().CreateBudget(ctx, budget); err != nil {
			return err
		}
		var err error
		result, err = s.reconciler.Materialize(ctx, tx, identity, budget)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("PILOT budget created",
		zap.String("budget_id", budget.BudgetID),
		zap.String("source_task_id", budget.SourceTaskID.String),
		zap.Int("contents_inserted", result.ContentsInserted),
		zap.Int("demands_inserted", result.DemandsInserted),
	)
	s.publish(ctx, domain.BudgetEvent{
		Type:       domain.EventBudgetCreated,
		BudgetID:   budget.BudgetID,
		BudgetType: budget.BudgetType,
		Counters:   result.Counters(),
		Actor:      identity.Actor(),
	})
	return budget, nil
}

// CreateExtraOrAdditionalBudget 创建空的 EXTRA / ADDITIONAL 预算
func (s *BudgetService) CreateExtraOrAdditionalBudget(ctx context.Context, identity domain.Identity, req CreateBudgetRequest) (*domain.Budget, error) {
	budgetType := domain.BudgetType(strings.ToUpper(strings.TrimSpace(req.BudgetType)))
	if budgetType != domain.BudgetTypeExtra && budgetType != domain.BudgetTypeAdditional {
		return nil, domain.NewValidationError("budget", "budget_type must be EXTRA or ADDITIONAL, got %q", req.BudgetType)
	}
	budget := &domain.Budget{
		Name:          strings.TrimSpace(req.Name),
		PhaseID:       strings.TrimSpace(req.PhaseID),
		BudgetType:    budgetType,
		SourceTaskID:  nullString(req.SourceTaskID),
		PilotBudgetID: nullString(req.PilotBudgetID),
		CreatedBy:     identity.Actor(),
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.hierarchy.ValidateOnInsert(ctx, tx, budget); err != nil {
			return err
		}
		return tx.Budgets().CreateBudget(ctx, budget)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget created",
		zap.String("budget_id", budget.BudgetID),
		zap.String("budget_type", string(budget.BudgetType)),
		zap.String("pilot_budget_id", budget.PilotBudgetID.String),
	)
	s.publish(ctx, domain.BudgetEvent{
		Type:       domain.EventBudgetCreated,
		BudgetID:   budget.BudgetID,
		BudgetType: budget.BudgetType,
		Actor:      identity.Actor(),
	})
	return budget, nil
}

// UpdateBudget 更新预算；PILOT 预算的 is_lock 会同步到绑定的 EXTRA 预算
func (s *BudgetService) UpdateBudget(ctx context.Context, identity domain.Identity, req UpdateBudgetRequest) (*domain.Budget, error) {
	var (
		updated     *domain.Budget
		lockChanged bool
		cascaded    []string
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.Budgets().LockBudget(ctx, req.BudgetID)
		if err != nil {
			return err
		}
		updated = existing.Clone()
		if req.Name != nil {
			updated.Name = strings.TrimSpace(*req.Name)
		}
		if req.BudgetType != nil {
			updated.BudgetType = domain.BudgetType(strings.ToUpper(strings.TrimSpace(*req.BudgetType)))
		}
		if req.IsLock != nil {
			updated.IsLock = *req.IsLock
		}
		if err := s.hierarchy.ValidateOnUpdate(existing, updated); err != nil {
			return err
		}

		updated.UpdatedBy = identity.Actor()
		if err := tx.Budgets().UpdateBudget(ctx, updated); err != nil {
			return err
		}
		if req.IsLock == nil {
			return nil
		}
		lockChanged = existing.IsLock != updated.IsLock
		cascaded, err = s.hierarchy.PropagateLock(ctx, tx, updated, identity.Actor())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget updated",
		zap.String("budget_id", updated.BudgetID),
		zap.Bool("is_lock", updated.IsLock),
		zap.Int("extra_budgets_synced", len(cascaded)),
	)
	if lockChanged {
		s.publish(ctx, domain.BudgetEvent{
			Type:           domain.EventBudgetLockChanged,
			BudgetID:       updated.BudgetID,
			BudgetType:     updated.BudgetType,
			IsLock:         updated.IsLock,
			ExtraBudgetIDs: cascaded,
			Actor:          identity.Actor(),
		})
	}
	return updated, nil
}

// DeleteBudget 删除预算（级联删除内容、需求以及绑定的 EXTRA 预算）
func (s *BudgetService) DeleteBudget(ctx context.Context, identity domain.Identity, budgetID string) error {
	var (
		budget *domain.Budget
		extras []*domain.Budget
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		budget, err = tx.Budgets().LockBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		extras, err = s.hierarchy.ValidateOnDelete(ctx, tx, identity, budget)
		if err != nil {
			return err
		}
		return tx.Budgets().DeleteBudget(ctx, budgetID)
	})
	if err != nil {
		return err
	}

	extraIDs := make([]string, 0, len(extras))
	for _, e := range extras {
		extraIDs = append(extraIDs, e.BudgetID)
	}
	s.logger.Info("Budget deleted",
		zap.String("budget_id", budgetID),
		zap.Strings("extra_budget_ids", extraIDs),
	)
	s.publish(ctx, domain.BudgetEvent{
		Type:           domain.EventBudgetDeleted,
		BudgetID:       budgetID,
		BudgetType:     budget.BudgetType,
		ExtraBudgetIDs: extraIDs,
		Actor:          identity.Actor(),
	})
	return nil
}

// ResyncDemand 按 EQ 需求重新同步 PILOT 预算内容
func (s *BudgetService) ResyncDemand(ctx context.Context, identity domain.Identity, budgetID string) (*ReconcileResult, error) {
	var (
		budget *domain.Budget
		result *ReconcileResult
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		budget, err = tx.Budgets().LockBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		result, err = s.reconciler.Resync(ctx, tx, identity, budget)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.BudgetEvent{
		Type:       domain.EventBudgetDemandResynced,
		BudgetID:   budgetID,
		BudgetType: budget.BudgetType,
		Counters:   result.Counters(),
		Actor:      identity.Actor(),
	})
	return result, nil
}

// ResyncPricing 同步单价与汇率
func (s *BudgetService) ResyncPricing(ctx context.Context, identity domain.Identity, budgetID string) (*ReconcileResult, error) {
	var (
		budget *domain.Budget
		result *ReconcileResult
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		budget, err = tx.Budgets().LockBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		result, err = s.reconciler.SyncPricing(ctx, tx, identity, budget)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.BudgetEvent{
		Type:       domain.EventBudgetPricingResynced,
		BudgetID:   budgetID,
		BudgetType: budget.BudgetType,
		Counters:   result.Counters(),
		Actor:      identity.Actor(),
	})
	return result, nil
}

// GetBudget 查询预算及绑定的 EXTRA 预算
func (s *BudgetService) GetBudget(ctx context.Context, budgetID string) (*BudgetDetail, error) {
	var detail *BudgetDetail
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		budget, err := tx.Budgets().GetBudget(ctx, budgetID)
		if err != nil {
			return err
		}
		detail = &BudgetDetail{Budget: budget, Children: []*domain.Budget{}}
		if !budget.IsPilot() {
			return nil
		}
		detail.Children, err = tx.Budgets().ListExtraBudgets(ctx, budgetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// publish 发布失败只记录警告，不影响已提交的操作
func (s *BudgetService) publish(ctx context.Context, event domain.BudgetEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish budget event",
			zap.String("event_type", string(event.Type)),
			zap.String("budget_id", event.BudgetID),
			zap.Error(err),
		)
	}
}
