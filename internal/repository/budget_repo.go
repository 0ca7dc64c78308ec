package repository

import (
	"context"

	"wms-budget/internal/domain"
)

// Store 事务入口：每个业务操作在一个事务内完成，fn 返回 error 即回滚
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx 事务内可用的 Repository
// 同一事务内的写入对后续读取立即可见（相当于 flush），提交后才对其他事务可见
type Tx interface {
	Budgets() BudgetsRepository
	Contents() ContentsRepository
	Demands() DemandsRepository
}

// BudgetsRepository 预算 Repository 接口
type BudgetsRepository interface {
	// GetBudget 根据 budget_id 获取预算，不存在返回 domain.ErrNotFound
	GetBudget(ctx context.Context, budgetID string) (*domain.Budget, error)

	// LockBudget 获取预算并加行锁（SELECT ... FOR UPDATE），用于串行化锁定切换与同步
	LockBudget(ctx context.Context, budgetID string) (*domain.Budget, error)

	// CreateBudget 创建预算，生成 budget_id
	// (name, phase_id, budget_type) 重复时返回 domain.ErrValidation
	CreateBudget(ctx context.Context, budget *domain.Budget) error

	// UpdateBudget 更新 name / is_lock / updated_by
	// 注意：budget_type、source_task_id、pilot_budget_id 创建后不可修改，这里不会写入
	UpdateBudget(ctx context.Context, budget *domain.Budget) error

	// DeleteBudget 删除预算（级联删除 content、demand 以及绑定的 extra 预算）
	DeleteBudget(ctx context.Context, budgetID string) error

	// ListExtraBudgets 查询绑定到某个 pilot 预算的 extra 预算
	ListExtraBudgets(ctx context.Context, pilotBudgetID string) ([]*domain.Budget, error)

	// SetExtraBudgetsLock 一条语句同步所有绑定 extra 预算的 is_lock，返回影响行数
	SetExtraBudgetsLock(ctx context.Context, pilotBudgetID string, isLock bool, updatedBy string) (int64, error)
}

// ContentsRepository 预算详情 Repository 接口
type ContentsRepository interface {
	GetContent(ctx context.Context, contentID string) (*domain.BudgetContent, error)

	ListContents(ctx context.Context, budgetID string) ([]*domain.BudgetContent, error)

	// CreateContent 创建预算详情，生成 content_id；唯一键重复返回 domain.ErrValidation
	CreateContent(ctx context.Context, content *domain.BudgetContent) error

	// UpdateContent 更新描述性字段、数量与价格字段（partnumber_id、budget_id 不变）
	UpdateContent(ctx context.Context, content *domain.BudgetContent) error

	// DeleteContent 删除预算详情（级联删除 demand）
	DeleteContent(ctx context.Context, contentID string) error

	// DeleteContentsByPartnumbers 删除预算下指定料号的详情，返回删除行数
	DeleteContentsByPartnumbers(ctx context.Context, budgetID string, partnumberIDs []string) (int64, error)
}

// DemandsRepository 预算需求 Repository 接口
type DemandsRepository interface {
	GetDemand(ctx context.Context, demandID string) (*domain.BudgetDemand, error)

	// GetDemandByFunction 按 (function, content_id) 唯一键查询
	GetDemandByFunction(ctx context.Context, contentID, function string) (*domain.BudgetDemand, error)

	ListDemands(ctx context.Context, contentID string) ([]*domain.BudgetDemand, error)

	// ListDemandsByBudget 查询预算下所有 demand，按 content_id 分组
	ListDemandsByBudget(ctx context.Context, budgetID string) (map[string][]*domain.BudgetDemand, error)

	CreateDemand(ctx context.Context, demand *domain.BudgetDemand) error

	// UpdateDemand 只更新 demand_qty（function、content_id 不可变）
	UpdateDemand(ctx context.Context, demand *domain.BudgetDemand) error

	DeleteDemand(ctx context.Context, demandID string) error

	// DeleteDemandsByFunctions 删除 content 下指定 function 的 demand，返回删除行数
	DeleteDemandsByFunctions(ctx context.Context, contentID string, functions []string) (int64, error)
}
