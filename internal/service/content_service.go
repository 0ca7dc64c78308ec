package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wms-budget/internal/domain"
	"wms-budget/internal/repository"
	"wms-budget/internal/valuation"
)

// ContentService 预算内容 / 需求服务（人工维护 EXTRA、ADDITIONAL 预算）
type ContentService struct {
	store   repository.Store
	guard   *AccessGuard
	catalog PartnumberCatalog
	rates   ExchangeRates
	logger  *zap.Logger
}

// NewContentService 创建预算内容服务
func NewContentService(store repository.Store, guard *AccessGuard, catalog PartnumberCatalog, rates ExchangeRates, logger *zap.Logger) *ContentService {
	return &ContentService{
		store:   store,
		guard:   guard,
		catalog: catalog,
		rates:   rates,
		logger:  logger,
	}
}

// ContentPatch 内容行可人工修改的字段（nil 不修改）
type ContentPatch struct {
	Addition                *string `json:"addition,omitempty"`
	LeadTimeWeeksLow        *int64  `json:"lead_time_weeks_low,omitempty"`
	LeadTimeWeeksHigh       *int64  `json:"lead_time_weeks_high,omitempty"`
	Buyer                   *string `json:"buyer,omitempty"`
	UserDRI                 *string `json:"user_dri,omitempty"`
	UserDept                *string `json:"user_dept,omitempty"`
	UserDeptManager         *string `json:"user_dept_manager,omitempty"`
	Counterpart             *string `json:"counterpart,omitempty"`
	ReimburseCustomerCheck  *bool   `json:"reimburse_customer_check,omitempty"`
	EmergencyPurchaseSubmit *bool   `json:"emergency_purchase_submit,omitempty"`
	PurchaseReason          *string `json:"purchase_reason,omitempty"`
	TotalPurchaseQty        *int    `json:"total_purchase_qty,omitempty"`
	OnHandQty               *int    `json:"on_hand_qty,omitempty"`
}

func patchString(dst *sql.NullString, v *string) {
	if v == nil {
		return
	}
	s := strings.TrimSpace(*v)
	*dst = sql.NullString{String: s, Valid: s != ""}
}

func patchInt64(dst *sql.NullInt64, v *int64) {
	if v != nil {
		*dst = sql.NullInt64{Int64: *v, Valid: true}
	}
}

func patchBool(dst *sql.NullBool, v *bool) {
	if v != nil {
		*dst = sql.NullBool{Bool: *v, Valid: true}
	}
}

func (p ContentPatch) validate() error {
	if p.TotalPurchaseQty != nil && *p.TotalPurchaseQty < 0 {
		return domain.NewValidationError("budget content", "total_purchase_qty cannot be negative")
	}
	if p.OnHandQty != nil && *p.OnHandQty < 0 {
		return domain.NewValidationError("budget content", "on_hand_qty cannot be negative")
	}
	if p.LeadTimeWeeksLow != nil && *p.LeadTimeWeeksLow < 0 {
		return domain.NewValidationError("budget content", "lead_time_weeks_low cannot be negative")
	}
	if p.LeadTimeWeeksHigh != nil && *p.LeadTimeWeeksHigh < 0 {
		return domain.NewValidationError("budget content", "lead_time_weeks_high cannot be negative")
	}
	return nil
}

func (p ContentPatch) apply(c *domain.BudgetContent) error {
	patchString(&c.Addition, p.Addition)
	patchInt64(&c.LeadTimeWeeksLow, p.LeadTimeWeeksLow)
	patchInt64(&c.LeadTimeWeeksHigh, p.LeadTimeWeeksHigh)
	patchString(&c.Buyer, p.Buyer)
	patchString(&c.UserDRI, p.UserDRI)
	patchString(&c.UserDept, p.UserDept)
	patchString(&c.UserDeptManager, p.UserDeptManager)
	patchString(&c.Counterpart, p.Counterpart)
	patchBool(&c.ReimburseCustomerCheck, p.ReimburseCustomerCheck)
	patchBool(&c.EmergencyPurchaseSubmit, p.EmergencyPurchaseSubmit)
	patchString(&c.PurchaseReason, p.PurchaseReason)
	if p.TotalPurchaseQty != nil {
		c.TotalPurchaseQty = *p.TotalPurchaseQty
	}
	if p.OnHandQty != nil {
		c.OnHandQty = *p.OnHandQty
	}
	if c.LeadTimeWeeksLow.Valid && c.LeadTimeWeeksHigh.Valid && c.LeadTimeWeeksLow.Int64 > c.LeadTimeWeeksHigh.Int64 {
		return domain.NewValidationError("budget content", "lead_time_weeks_low (%d) is greater than lead_time_weeks_high (%d)",
			c.LeadTimeWeeksLow.Int64, c.LeadTimeWeeksHigh.Int64)
	}
	return nil
}

// AddContentRequest 新增内容行请求
type AddContentRequest struct {
	BudgetID     string `json:"budget_id"`
	PartnumberID string `json:"partnumber_id"`
	ContentPatch
}

// UpdateContentRequest 更新内容行请求
type UpdateContentRequest struct {
	ContentID string `json:"content_id"`
	ContentPatch
}

// UpsertDemandRequest 新增或更新需求请求
type UpsertDemandRequest struct {
	ContentID string `json:"content_id"`
	Function  string `json:"function"`
	DemandQty int    `json:"demand_qty"`
}

// ContentLineView 内容行 + 需求 + 估值（只读）
type ContentLineView struct {
	Content         *domain.BudgetContent
	Demands         []*domain.BudgetDemand
	Summary         valuation.Summary
	DemandUSDTotals map[string]decimal.Decimal // function -> usd_total
}

// AddContent 人工新增内容行（PILOT 预算禁止），单价、币种、汇率取自主数据
func (s *ContentService) AddContent(ctx context.Context, identity domain.Identity, req AddContentRequest) (*domain.BudgetContent, error) {
	partnumberID := strings.TrimSpace(req.PartnumberID)
	if partnumberID == "" {
		return nil, domain.NewValidationError("budget content", "partnumber_id is required")
	}
	if err := req.ContentPatch.validate(); err != nil {
		return nil, err
	}

	var content *domain.BudgetContent
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		budget, err := tx.Budgets().LockBudget(ctx, req.BudgetID)
		if err != nil {
			return err
		}
		if err := s.guard.Guard(ctx, tx, identity, OpInsert, ContentTarget{Budget: budget, Manual: true}); err != nil {
			return err
		}

		pn, err := s.catalog.GetPartnumber(ctx, partnumberID)
		if err != nil {
			return fmt.Errorf("failed to get partnumber %s: %w", partnumberID, err)
		}
		rate, err := s.rates.GetExchangeRateToUSD(ctx, pn.Currency)
		if err != nil {
			return fmt.Errorf("failed to get exchange rate for %s: %w", pn.Currency, err)
		}

		content = &domain.BudgetContent{
			PartnumberID:      partnumberID,
			BudgetID:          budget.BudgetID,
			PartNo:            pn.PartNo,
			UnitPrice:         pn.Price,
			UnitPriceCurrency: pn.Currency,
			ExchangeRateToUSD: rate,
			CreatedBy:         identity.Actor(),
		}
		if err := req.ContentPatch.apply(content); err != nil {
			return err
		}
		return tx.Contents().CreateContent(ctx, content)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget content added",
		zap.String("budget_id", content.BudgetID),
		zap.String("content_id", content.ContentID),
		zap.String("partnumber_id", content.PartnumberID),
	)
	return content, nil
}

// loadContentTarget 内容行及其所属预算（预算加行锁）
func loadContentTarget(ctx context.Context, tx repository.Tx, contentID string) (*domain.BudgetContent, *domain.Budget, error) {
	content, err := tx.Contents().GetContent(ctx, contentID)
	if err != nil {
		return nil, nil, err
	}
	budget, err := tx.Budgets().LockBudget(ctx, content.BudgetID)
	if err != nil {
		return nil, nil, err
	}
	return content, budget, nil
}

// UpdateContent 人工更新内容行
func (s *ContentService) UpdateContent(ctx context.Context, identity domain.Identity, req UpdateContentRequest) (*domain.BudgetContent, error) {
	if err := req.ContentPatch.validate(); err != nil {
		return nil, err
	}

	var content *domain.BudgetContent
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var (
			budget *domain.Budget
			err    error
		)
		content, budget, err = loadContentTarget(ctx, tx, req.ContentID)
		if err != nil {
			return err
		}
		if err := s.guard.Guard(ctx, tx, identity, OpUpdate, ContentTarget{Budget: budget, Content: content, Manual: true}); err != nil {
			return err
		}
		if err := req.ContentPatch.apply(content); err != nil {
			return err
		}
		content.UpdatedBy = identity.Actor()
		return tx.Contents().UpdateContent(ctx, content)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget content updated", zap.String("content_id", content.ContentID))
	return content, nil
}

// DeleteContent 人工删除内容行（级联删除需求）
func (s *ContentService) DeleteContent(ctx context.Context, identity domain.Identity, contentID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		content, budget, err := loadContentTarget(ctx, tx, contentID)
		if err != nil {
			return err
		}
		if err := s.guard.Guard(ctx, tx, identity, OpDelete, ContentTarget{Budget: budget, Content: content, Manual: true}); err != nil {
			return err
		}
		return tx.Contents().DeleteContent(ctx, contentID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Budget content deleted", zap.String("content_id", contentID))
	return nil
}

// UpsertDemand 人工新增或更新需求；(function, content) 已存在时更新 demand_qty
func (s *ContentService) UpsertDemand(ctx context.Context, identity domain.Identity, req UpsertDemandRequest) (*domain.BudgetDemand, error) {
	function := strings.TrimSpace(req.Function)
	if function == "" {
		return nil, domain.NewValidationError("budget demand", "function is required")
	}
	if req.DemandQty <= 0 {
		return nil, domain.NewValidationError("budget demand", "demand_qty must be positive, got %d", req.DemandQty)
	}

	var (
		demand  *domain.BudgetDemand
		created bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		content, budget, err := loadContentTarget(ctx, tx, req.ContentID)
		if err != nil {
			return err
		}

		existing, err := tx.Demands().GetDemandByFunction(ctx, content.ContentID, function)
		if err != nil && !domain.IsNotFound(err) {
			return err
		}
		op := OpUpdate
		if existing == nil {
			op = OpInsert
		}
		if err := s.guard.Guard(ctx, tx, identity, op, ContentTarget{Budget: budget, Content: content, Manual: true}); err != nil {
			return err
		}

		if existing == nil {
			created = true
			demand = &domain.BudgetDemand{
				Function:  function,
				DemandQty: req.DemandQty,
				ContentID: content.ContentID,
				CreatedBy: identity.Actor(),
			}
			return tx.Demands().CreateDemand(ctx, demand)
		}
		demand = existing
		demand.DemandQty = req.DemandQty
		demand.UpdatedBy = identity.Actor()
		return tx.Demands().UpdateDemand(ctx, demand)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget demand upserted",
		zap.String("content_id", demand.ContentID),
		zap.String("function", demand.Function),
		zap.Int("demand_qty", demand.DemandQty),
		zap.Bool("created", created),
	)
	return demand, nil
}

// DeleteDemand 人工删除需求；内容行的最后一条需求被删除时一并删除内容行
func (s *ContentService) DeleteDemand(ctx context.Context, identity domain.Identity, demandID string) error {
	var contentDeleted bool
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		demand, err := tx.Demands().GetDemand(ctx, demandID)
		if err != nil {
			return err
		}
		content, budget, err := loadContentTarget(ctx, tx, demand.ContentID)
		if err != nil {
			return err
		}
		if err := s.guard.Guard(ctx, tx, identity, OpDelete, ContentTarget{Budget: budget, Content: content, Manual: true}); err != nil {
			return err
		}
		if err := tx.Demands().DeleteDemand(ctx, demandID); err != nil {
			return err
		}

		remaining, err := tx.Demands().ListDemands(ctx, content.ContentID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}
		contentDeleted = true
		return tx.Contents().DeleteContent(ctx, content.ContentID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Budget demand deleted",
		zap.String("demand_id", demandID),
		zap.Bool("content_deleted", contentDeleted),
	)
	return nil
}

// ListContentLines 查询预算下所有内容行及估值
func (s *ContentService) ListContentLines(ctx context.Context, budgetID string) ([]ContentLineView, error) {
	var lines []domain.ContentLine
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		_, lines, err = loadContentLines(ctx, tx, budgetID)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]ContentLineView, 0, len(lines))
	for _, line := range lines {
		c := line.Content
		totals := make(map[string]decimal.Decimal, len(line.Demands))
		for _, d := range line.Demands {
			totals[d.Function] = valuation.DemandUSDTotal(c, d)
		}
		views = append(views, ContentLineView{
			Content:         c,
			Demands:         line.Demands,
			Summary:         valuation.Summarize(c, line.Demands),
			DemandUSDTotals: totals,
		})
	}
	return views, nil
}

// ExportLines 在同一事务内读取预算头与全部内容行，供导出使用
func (s *ContentService) ExportLines(ctx context.Context, budgetID string) (*domain.Budget, []domain.ContentLine, error) {
	var (
		budget *domain.Budget
		lines  []domain.ContentLine
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		budget, lines, err = loadContentLines(ctx, tx, budgetID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return budget, lines, nil
}

func loadContentLines(ctx context.Context, tx repository.Tx, budgetID string) (*domain.Budget, []domain.ContentLine, error) {
	budget, err := tx.Budgets().GetBudget(ctx, budgetID)
	if err != nil {
		return nil, nil, err
	}
	contents, err := tx.Contents().ListContents(ctx, budgetID)
	if err != nil {
		return nil, nil, err
	}
	demandsByContent, err := tx.Demands().ListDemandsByBudget(ctx, budgetID)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]domain.ContentLine, 0, len(contents))
	for _, c := range contents {
		demands := demandsByContent[c.ContentID]
		if demands == nil {
			demands = []*domain.BudgetDemand{}
		}
		lines = append(lines, domain.ContentLine{Content: c, Demands: demands})
	}
	return budget, lines, nil
}
