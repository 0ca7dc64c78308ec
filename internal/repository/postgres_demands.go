package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"wms-budget/internal/domain"
)

// PostgresDemandsRepository 预算需求 Repository（Postgres 实现）
type PostgresDemandsRepository struct {
	db DBTX
}

// NewPostgresDemandsRepository 创建预算需求 Repository
func NewPostgresDemandsRepository(db DBTX) *PostgresDemandsRepository {
	return &PostgresDemandsRepository{db: db}
}

var _ DemandsRepository = (*PostgresDemandsRepository)(nil)

const demandColumns = `
	demand_id::text,
	function,
	demand_qty,
	content_id::text,
	created_by,
	updated_by,
	created_at,
	updated_at`

func scanDemand(row rowScanner) (*domain.BudgetDemand, error) {
	var d domain.BudgetDemand
	err := row.Scan(
		&d.DemandID,
		&d.Function,
		&d.DemandQty,
		&d.ContentID,
		&d.CreatedBy,
		&d.UpdatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresDemandsRepository) queryDemands(ctx context.Context, query string, args ...any) ([]*domain.BudgetDemand, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget demands: %w", err)
	}
	defer rows.Close()

	demands := []*domain.BudgetDemand{}
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget demand: %w", err)
		}
		demands = append(demands, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budget demands: %w", err)
	}
	return demands, nil
}

// GetDemand 根据 demand_id 获取需求
func (r *PostgresDemandsRepository) GetDemand(ctx context.Context, demandID string) (*domain.BudgetDemand, error) {
	if demandID == "" {
		return nil, domain.NewNotFoundError("budget demand", "demand_id is required")
	}
	query := `SELECT` + demandColumns + ` FROM wms_budget_demand WHERE demand_id = $1`
	d, err := scanDemand(r.db.QueryRowContext(ctx, query, demandID))
	if err != nil {
		return nil, mapReadError("budget demand", demandID, err)
	}
	return d, nil
}

// GetDemandByFunction 按唯一键查询
func (r *PostgresDemandsRepository) GetDemandByFunction(ctx context.Context, contentID, function string) (*domain.BudgetDemand, error) {
	query := `SELECT` + demandColumns + `
		FROM wms_budget_demand
		WHERE content_id = $1 AND function = $2`
	d, err := scanDemand(r.db.QueryRowContext(ctx, query, contentID, function))
	if err != nil {
		return nil, mapReadError("budget demand", function, err)
	}
	return d, nil
}

// ListDemands 查询 content 下所有 demand
func (r *PostgresDemandsRepository) ListDemands(ctx context.Context, contentID string) ([]*domain.BudgetDemand, error) {
	query := `SELECT` + demandColumns + `
		FROM wms_budget_demand
		WHERE content_id = $1
		ORDER BY function`
	return r.queryDemands(ctx, query, contentID)
}

// ListDemandsByBudget 查询预算下所有 demand
func (r *PostgresDemandsRepository) ListDemandsByBudget(ctx context.Context, budgetID string) (map[string][]*domain.BudgetDemand, error) {
	query := `
		SELECT
			d.demand_id::text,
			d.function,
			d.demand_qty,
			d.content_id::text,
			d.created_by,
			d.updated_by,
			d.created_at,
			d.updated_at
		FROM wms_budget_demand d
		JOIN wms_budget_content c ON c.content_id = d.content_id
		WHERE c.budget_id = $1
		ORDER BY d.content_id, d.function`
	demands, err := r.queryDemands(ctx, query, budgetID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*domain.BudgetDemand)
	for _, d := range demands {
		grouped[d.ContentID] = append(grouped[d.ContentID], d)
	}
	return grouped, nil
}

// CreateDemand 创建需求
func (r *PostgresDemandsRepository) CreateDemand(ctx context.Context, demand *domain.BudgetDemand) error {
	if demand == nil {
		return fmt.Errorf("budget demand is required")
	}
	demand.DemandID = uuid.NewString()
	now := time.Now().UTC()
	demand.CreatedAt, demand.UpdatedAt = now, now
	if demand.UpdatedBy == "" {
		demand.UpdatedBy = demand.CreatedBy
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wms_budget_demand (
			demand_id, function, demand_qty, content_id,
			created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		demand.DemandID, demand.Function, demand.DemandQty, demand.ContentID,
		demand.CreatedBy, demand.UpdatedBy, demand.CreatedAt, demand.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("budget demand", "create", err)
	}
	return nil
}

// UpdateDemand 更新需求数量
func (r *PostgresDemandsRepository) UpdateDemand(ctx context.Context, demand *domain.BudgetDemand) error {
	if demand == nil || demand.DemandID == "" {
		return fmt.Errorf("demand_id is required")
	}
	demand.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE wms_budget_demand
		SET demand_qty = $2, updated_by = $3, updated_at = $4
		WHERE demand_id = $1
	`, demand.DemandID, demand.DemandQty, demand.UpdatedBy, demand.UpdatedAt)
	if err != nil {
		return mapWriteError("budget demand", "update", err)
	}
	return checkAffected(res, "budget demand", demand.DemandID)
}

// DeleteDemand 删除需求
func (r *PostgresDemandsRepository) DeleteDemand(ctx context.Context, demandID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wms_budget_demand WHERE demand_id = $1`, demandID)
	if err != nil {
		return mapWriteError("budget demand", "delete", err)
	}
	return checkAffected(res, "budget demand", demandID)
}

// DeleteDemandsByFunctions 按 function 批量删除
func (r *PostgresDemandsRepository) DeleteDemandsByFunctions(ctx context.Context, contentID string, functions []string) (int64, error) {
	if len(functions) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM wms_budget_demand
		WHERE content_id = $1 AND function = ANY($2)
	`, contentID, pq.Array(functions))
	if err != nil {
		return 0, fmt.Errorf("failed to delete budget demands: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
