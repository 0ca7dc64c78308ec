package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wms-budget/internal/domain"
)

// PostgresBudgetsRepository 预算 Repository（Postgres 实现）
type PostgresBudgetsRepository struct {
	db DBTX
}

// NewPostgresBudgetsRepository 创建预算 Repository；db 可以是 *sql.DB 或 *sql.Tx
func NewPostgresBudgetsRepository(db DBTX) *PostgresBudgetsRepository {
	return &PostgresBudgetsRepository{db: db}
}

var _ BudgetsRepository = (*PostgresBudgetsRepository)(nil)

const budgetColumns = `
	budget_id::text,
	name,
	phase_id,
	budget_type,
	is_lock,
	source_task_id,
	pilot_budget_id::text,
	created_by,
	updated_by,
	created_at,
	updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (*domain.Budget, error) {
	var b domain.Budget
	var budgetType string
	err := row.Scan(
		&b.BudgetID,
		&b.Name,
		&b.PhaseID,
		&budgetType,
		&b.IsLock,
		&b.SourceTaskID,
		&b.PilotBudgetID,
		&b.CreatedBy,
		&b.UpdatedBy,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.BudgetType = domain.BudgetType(budgetType)
	return &b, nil
}

// GetBudget 根据 budget_id 获取预算
func (r *PostgresBudgetsRepository) GetBudget(ctx context.Context, budgetID string) (*domain.Budget, error) {
	if budgetID == "" {
		return nil, domain.NewNotFoundError("budget", "budget_id is required")
	}
	query := `SELECT` + budgetColumns + ` FROM wms_budget WHERE budget_id = $1`
	b, err := scanBudget(r.db.QueryRowContext(ctx, query, budgetID))
	if err != nil {
		return nil, mapReadError("budget", budgetID, err)
	}
	return b, nil
}

// LockBudget 获取预算并加行锁
func (r *PostgresBudgetsRepository) LockBudget(ctx context.Context, budgetID string) (*domain.Budget, error) {
	if budgetID == "" {
		return nil, domain.NewNotFoundError("budget", "budget_id is required")
	}
	query := `SELECT` + budgetColumns + ` FROM wms_budget WHERE budget_id = $1 FOR UPDATE`
	b, err := scanBudget(r.db.QueryRowContext(ctx, query, budgetID))
	if err != nil {
		return nil, mapReadError("budget", budgetID, err)
	}
	return b, nil
}

// CreateBudget 创建预算
func (r *PostgresBudgetsRepository) CreateBudget(ctx context.Context, budget *domain.Budget) error {
	if budget == nil {
		return fmt.Errorf("budget is required")
	}
	budget.BudgetID = uuid.NewString()
	now := time.Now().UTC()
	budget.CreatedAt, budget.UpdatedAt = now, now
	if budget.UpdatedBy == "" {
		budget.UpdatedBy = budget.CreatedBy
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wms_budget (
			budget_id, name, phase_id, budget_type, is_lock,
			source_task_id, pilot_budget_id, created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		budget.BudgetID,
		budget.Name,
		budget.PhaseID,
		string(budget.BudgetType),
		budget.IsLock,
		budget.SourceTaskID,
		nullUUID(budget.PilotBudgetID),
		budget.CreatedBy,
		budget.UpdatedBy,
		budget.CreatedAt,
		budget.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("budget", "create", err)
	}
	return nil
}

// UpdateBudget 更新预算可变字段
func (r *PostgresBudgetsRepository) UpdateBudget(ctx context.Context, budget *domain.Budget) error {
	if budget == nil || budget.BudgetID == "" {
		return fmt.Errorf("budget_id is required")
	}
	budget.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE wms_budget
		SET name = $2, is_lock = $3, updated_by = $4, updated_at = $5
		WHERE budget_id = $1
	`, budget.BudgetID, budget.Name, budget.IsLock, budget.UpdatedBy, budget.UpdatedAt)
	if err != nil {
		return mapWriteError("budget", "update", err)
	}
	return checkAffected(res, "budget", budget.BudgetID)
}

// DeleteBudget 删除预算（外键 ON DELETE CASCADE 完成级联）
func (r *PostgresBudgetsRepository) DeleteBudget(ctx context.Context, budgetID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wms_budget WHERE budget_id = $1`, budgetID)
	if err != nil {
		return mapWriteError("budget", "delete", err)
	}
	return checkAffected(res, "budget", budgetID)
}

// ListExtraBudgets 查询绑定的 extra 预算
func (r *PostgresBudgetsRepository) ListExtraBudgets(ctx context.Context, pilotBudgetID string) ([]*domain.Budget, error) {
	query := `SELECT` + budgetColumns + `
		FROM wms_budget
		WHERE pilot_budget_id = $1 AND budget_type = $2
		ORDER BY created_at, name`
	rows, err := r.db.QueryContext(ctx, query, pilotBudgetID, string(domain.BudgetTypeExtra))
	if err != nil {
		return nil, fmt.Errorf("failed to list extra budgets: %w", err)
	}
	defer rows.Close()

	budgets := []*domain.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budgets: %w", err)
	}
	return budgets, nil
}

// SetExtraBudgetsLock 同步 extra 预算的 is_lock
func (r *PostgresBudgetsRepository) SetExtraBudgetsLock(ctx context.Context, pilotBudgetID string, isLock bool, updatedBy string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wms_budget
		SET is_lock = $2, updated_by = $3, updated_at = NOW()
		WHERE pilot_budget_id = $1 AND budget_type = $4
	`, pilotBudgetID, isLock, updatedBy, string(domain.BudgetTypeExtra))
	if err != nil {
		return 0, fmt.Errorf("failed to propagate budget lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
