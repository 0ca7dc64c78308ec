package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"wms-budget/internal/domain"
)

// PostgresContentsRepository 预算详情 Repository（Postgres 实现）
type PostgresContentsRepository struct {
	db DBTX
}

// NewPostgresContentsRepository 创建预算详情 Repository
func NewPostgresContentsRepository(db DBTX) *PostgresContentsRepository {
	return &PostgresContentsRepository{db: db}
}

var _ ContentsRepository = (*PostgresContentsRepository)(nil)

const contentColumns = `
	content_id::text,
	partnumber_id,
	budget_id::text,
	part_no,
	addition,
	lead_time_weeks_low,
	lead_time_weeks_high,
	buyer,
	user_dri,
	user_dept,
	user_dept_manager,
	counterpart,
	reimburse_customer_check,
	emergency_purchase_submit,
	purchase_reason,
	total_purchase_qty,
	on_hand_qty,
	unit_price,
	unit_price_currency,
	exchange_rate_to_usd,
	created_by,
	updated_by,
	created_at,
	updated_at`

func scanContent(row rowScanner) (*domain.BudgetContent, error) {
	var c domain.BudgetContent
	err := row.Scan(
		&c.ContentID,
		&c.PartnumberID,
		&c.BudgetID,
		&c.PartNo,
		&c.Addition,
		&c.LeadTimeWeeksLow,
		&c.LeadTimeWeeksHigh,
		&c.Buyer,
		&c.UserDRI,
		&c.UserDept,
		&c.UserDeptManager,
		&c.Counterpart,
		&c.ReimburseCustomerCheck,
		&c.EmergencyPurchaseSubmit,
		&c.PurchaseReason,
		&c.TotalPurchaseQty,
		&c.OnHandQty,
		&c.UnitPrice,
		&c.UnitPriceCurrency,
		&c.ExchangeRateToUSD,
		&c.CreatedBy,
		&c.UpdatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContent 根据 content_id 获取预算详情
func (r *PostgresContentsRepository) GetContent(ctx context.Context, contentID string) (*domain.BudgetContent, error) {
	if contentID == "" {
		return nil, domain.NewNotFoundError("budget content", "content_id is required")
	}
	query := `SELECT` + contentColumns + ` FROM wms_budget_content WHERE content_id = $1`
	c, err := scanContent(r.db.QueryRowContext(ctx, query, contentID))
	if err != nil {
		return nil, mapReadError("budget content", contentID, err)
	}
	return c, nil
}

// ListContents 查询预算下所有详情
func (r *PostgresContentsRepository) ListContents(ctx context.Context, budgetID string) ([]*domain.BudgetContent, error) {
	query := `SELECT` + contentColumns + `
		FROM wms_budget_content
		WHERE budget_id = $1
		ORDER BY created_at, part_no`
	rows, err := r.db.QueryContext(ctx, query, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget contents: %w", err)
	}
	defer rows.Close()

	contents := []*domain.BudgetContent{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget content: %w", err)
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budget contents: %w", err)
	}
	return contents, nil
}

// CreateContent 创建预算详情
func (r *PostgresContentsRepository) CreateContent(ctx context.Context, content *domain.BudgetContent) error {
	if content == nil {
		return fmt.Errorf("budget content is required")
	}
	content.ContentID = uuid.NewString()
	now := time.Now().UTC()
	content.CreatedAt, content.UpdatedAt = now, now
	if content.PartNo == "" {
		content.PartNo = domain.DefaultPartNo
	}
	if content.UpdatedBy == "" {
		content.UpdatedBy = content.CreatedBy
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wms_budget_content (
			content_id, partnumber_id, budget_id, part_no,
			addition, lead_time_weeks_low, lead_time_weeks_high, buyer,
			user_dri, user_dept, user_dept_manager, counterpart,
			reimburse_customer_check, emergency_purchase_submit, purchase_reason,
			total_purchase_qty, on_hand_qty, unit_price, unit_price_currency, exchange_rate_to_usd,
			created_by, updated_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18, $19, $20,
			$21, $22, $23, $24
		)
	`,
		content.ContentID, content.PartnumberID, content.BudgetID, content.PartNo,
		content.Addition, content.LeadTimeWeeksLow, content.LeadTimeWeeksHigh, content.Buyer,
		content.UserDRI, content.UserDept, content.UserDeptManager, content.Counterpart,
		content.ReimburseCustomerCheck, content.EmergencyPurchaseSubmit, content.PurchaseReason,
		content.TotalPurchaseQty, content.OnHandQty, content.UnitPrice, content.UnitPriceCurrency, content.ExchangeRateToUSD,
		content.CreatedBy, content.UpdatedBy, content.CreatedAt, content.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("budget content", "create", err)
	}
	return nil
}

// UpdateContent 更新预算详情
func (r *PostgresContentsRepository) UpdateContent(ctx context.Context, content *domain.BudgetContent) error {
	if content == nil || content.ContentID == "" {
		return fmt.Errorf("content_id is required")
	}
	content.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE wms_budget_content SET
			part_no = $2,
			addition = $3,
			lead_time_weeks_low = $4,
			lead_time_weeks_high = $5,
			buyer = $6,
			user_dri = $7,
			user_dept = $8,
			user_dept_manager = $9,
			counterpart = $10,
			reimburse_customer_check = $11,
			emergency_purchase_submit = $12,
			purchase_reason = $13,
			total_purchase_qty = $14,
			on_hand_qty = $15,
			unit_price = $16,
			unit_price_currency = $17,
			exchange_rate_to_usd = $18,
			updated_by = $19,
			updated_at = $20
		WHERE content_id = $1
	`,
		content.ContentID, content.PartNo,
		content.Addition, content.LeadTimeWeeksLow, content.LeadTimeWeeksHigh, content.Buyer,
		content.UserDRI, content.UserDept, content.UserDeptManager, content.Counterpart,
		content.ReimburseCustomerCheck, content.EmergencyPurchaseSubmit, content.PurchaseReason,
		content.TotalPurchaseQty, content.OnHandQty, content.UnitPrice, content.UnitPriceCurrency, content.ExchangeRateToUSD,
		content.UpdatedBy, content.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("budget content", "update", err)
	}
	return checkAffected(res, "budget content", content.ContentID)
}

// DeleteContent 删除预算详情
func (r *PostgresContentsRepository) DeleteContent(ctx context.Context, contentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wms_budget_content WHERE content_id = $1`, contentID)
	if err != nil {
		return mapWriteError("budget content", "delete", err)
	}
	return checkAffected(res, "budget content", contentID)
}

// DeleteContentsByPartnumbers 按料号批量删除
func (r *PostgresContentsRepository) DeleteContentsByPartnumbers(ctx context.Context, budgetID string, partnumberIDs []string) (int64, error) {
	if len(partnumberIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM wms_budget_content
		WHERE budget_id = $1 AND partnumber_id = ANY($2)
	`, budgetID, pq.Array(partnumberIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete budget contents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
