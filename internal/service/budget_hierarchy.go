package service

import (
	"context"
	"database/sql"
	"strings"

	"wms-budget/internal/domain"
	"wms-budget/internal/repository"
)

// BudgetHierarchy 预算结构约束：类型 / 绑定关系、锁定级联、删除检查
type BudgetHierarchy struct {
	guard   *AccessGuard
	demands DemandSource
}

// NewBudgetHierarchy 创建 BudgetHierarchy
func NewBudgetHierarchy(guard *AccessGuard, demands DemandSource) *BudgetHierarchy {
	return &BudgetHierarchy{guard: guard, demands: demands}
}

func hasValue(s sql.NullString) bool {
	return s.Valid && strings.TrimSpace(s.String) != ""
}

// validateLinkage 类型与 source_task_id / pilot_budget_id 的对应关系
func validateLinkage(budget *domain.Budget) error {
	if !budget.BudgetType.IsValid() {
		return domain.NewValidationError("budget", "unknown budget_type %q", budget.BudgetType)
	}
	if strings.TrimSpace(budget.Name) == "" {
		return domain.NewValidationError("budget", "name is required")
	}
	if strings.TrimSpace(budget.PhaseID) == "" {
		return domain.NewValidationError("budget", "phase_id is required")
	}

	hasTask := hasValue(budget.SourceTaskID)
	hasPilot := hasValue(budget.PilotBudgetID)
	switch budget.BudgetType {
	case domain.BudgetTypePilot:
		if !hasTask {
			return domain.NewValidationError("budget", "PILOT budget requires source_task_id")
		}
		if hasPilot {
			return domain.NewValidationError("budget", "PILOT budget cannot bind pilot_budget_id")
		}
	case domain.BudgetTypeExtra:
		if !hasPilot {
			return domain.NewValidationError("budget", "EXTRA budget requires pilot_budget_id")
		}
		if hasTask {
			return domain.NewValidationError("budget", "EXTRA budget cannot have source_task_id")
		}
	case domain.BudgetTypeAdditional:
		if hasTask {
			return domain.NewValidationError("budget", "ADDITIONAL budget cannot have source_task_id")
		}
		if hasPilot {
			return domain.NewValidationError("budget", "ADDITIONAL budget cannot bind pilot_budget_id")
		}
	}
	return nil
}

// checkSourceTask 源任务必须存在、为 EQ_LIST 类型、子任务全部审批完成
func checkSourceTask(ctx context.Context, demands DemandSource, taskID string) (*domain.SourceTask, error) {
	task, err := demands.GetSourceTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.TaskType != domain.TaskTypeEQList {
		return nil, domain.NewValidationError("source task", "task %s is %s, expected %s", taskID, task.TaskType, domain.TaskTypeEQList)
	}
	if !task.SubTasksApproved() {
		return nil, domain.NewValidationError("source task", "approval sub-tasks of task %s are not all complete", taskID)
	}
	return task, nil
}

// ValidateOnInsert 新增预算前检查
func (h *BudgetHierarchy) ValidateOnInsert(ctx context.Context, tx repository.Tx, budget *domain.Budget) error {
	if err := validateLinkage(budget); err != nil {
		return err
	}
	switch budget.BudgetType {
	case domain.BudgetTypePilot:
		if _, err := checkSourceTask(ctx, h.demands, budget.SourceTaskID.String); err != nil {
			return err
		}
	case domain.BudgetTypeExtra:
		pilot, err := tx.Budgets().LockBudget(ctx, budget.PilotBudgetID.String)
		if err != nil {
			return err
		}
		if !pilot.IsPilot() {
			return domain.NewValidationError("budget", "pilot_budget_id %s is a %s budget, expected PILOT", pilot.BudgetID, pilot.BudgetType)
		}
		if pilot.IsLock {
			return domain.NewConflictError("budget", "PILOT budget %s is locked, EXTRA budget cannot bind to it", pilot.Name)
		}
	}
	return nil
}

// ValidateOnUpdate 更新预算前检查；budget_type / source_task_id / pilot_budget_id 只能在创建时设置
func (h *BudgetHierarchy) ValidateOnUpdate(existing, updated *domain.Budget) error {
	if updated.BudgetType != existing.BudgetType {
		return domain.NewValidationError("budget", "budget_type cannot be changed (%s -> %s)", existing.BudgetType, updated.BudgetType)
	}
	if updated.SourceTaskID != existing.SourceTaskID {
		return domain.NewValidationError("budget", "source_task_id cannot be changed")
	}
	if updated.PilotBudgetID != existing.PilotBudgetID {
		return domain.NewValidationError("budget", "pilot_budget_id cannot be changed")
	}
	return validateLinkage(updated)
}

// PropagateLock PILOT 预算的 is_lock 同步到所有绑定的 EXTRA 预算（同一事务内），返回被同步的预算 id
func (h *BudgetHierarchy) PropagateLock(ctx context.Context, tx repository.Tx, budget *domain.Budget, updatedBy string) ([]string, error) {
	if !budget.IsPilot() {
		return nil, nil
	}
	extras, err := tx.Budgets().ListExtraBudgets(ctx, budget.BudgetID)
	if err != nil {
		return nil, err
	}
	if len(extras) == 0 {
		return nil, nil
	}
	if _, err := tx.Budgets().SetExtraBudgetsLock(ctx, budget.BudgetID, budget.IsLock, updatedBy); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(extras))
	for _, e := range extras {
		ids = append(ids, e.BudgetID)
	}
	return ids, nil
}

// ValidateOnDelete 删除预算前检查：预算本身及级联删除的 EXTRA 预算都要通过锁定与跨 function 检查
// 返回会被级联删除的 EXTRA 预算
func (h *BudgetHierarchy) ValidateOnDelete(ctx context.Context, tx repository.Tx, identity domain.Identity, budget *domain.Budget) ([]*domain.Budget, error) {
	var extras []*domain.Budget
	if budget.IsPilot() {
		var err error
		extras, err = tx.Budgets().ListExtraBudgets(ctx, budget.BudgetID)
		if err != nil {
			return nil, err
		}
	}

	for _, b := range append([]*domain.Budget{budget}, extras...) {
		if err := h.guard.CheckUnlocked(b); err != nil {
			return nil, err
		}
		demandsByContent, err := tx.Demands().ListDemandsByBudget(ctx, b.BudgetID)
		if err != nil {
			return nil, err
		}
		for _, demands := range demandsByContent {
			if err := h.guard.CheckFunctionOverlap(identity, demands); err != nil {
				return nil, err
			}
		}
	}
	return extras, nil
}
