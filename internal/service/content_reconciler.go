package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wms-budget/internal/domain"
	"wms-budget/internal/repository"
)

// ReconcileResult 同步结果计数
type ReconcileResult struct {
	ContentsInserted int `json:"contents_inserted"`
	ContentsUpdated  int `json:"contents_updated"`
	ContentsDeleted  int `json:"contents_deleted"`
	DemandsInserted  int `json:"demands_inserted"`
	DemandsUpdated   int `json:"demands_updated"`
	DemandsDeleted   int `json:"demands_deleted"`
}

// Counters 事件 / 日志使用
func (r *ReconcileResult) Counters() map[string]int {
	return map[string]int{
		"contents_inserted": r.ContentsInserted,
		"contents_updated":  r.ContentsUpdated,
		"contents_deleted":  r.ContentsDeleted,
		"demands_inserted":  r.DemandsInserted,
		"demands_updated":   r.DemandsUpdated,
		"demands_deleted":   r.DemandsDeleted,
	}
}

func (r *ReconcileResult) fields() []zap.Field {
	return []zap.Field{
		zap.Int("contents_inserted", r.ContentsInserted),
		zap.Int("contents_updated", r.ContentsUpdated),
		zap.Int("contents_deleted", r.ContentsDeleted),
		zap.Int("demands_inserted", r.DemandsInserted),
		zap.Int("demands_updated", r.DemandsUpdated),
		zap.Int("demands_deleted", r.DemandsDeleted),
	}
}

// ContentReconciler 用新鲜需求快照同步 PILOT 预算的 content / demand
type ContentReconciler struct {
	guard   *AccessGuard
	demands DemandSource
	catalog PartnumberCatalog
	rates   ExchangeRates
	logger  *zap.Logger
}

// NewContentReconciler 创建 ContentReconciler
func NewContentReconciler(guard *AccessGuard, demands DemandSource, catalog PartnumberCatalog, rates ExchangeRates, logger *zap.Logger) *ContentReconciler {
	return &ContentReconciler{
		guard:   guard,
		demands: demands,
		catalog: catalog,
		rates:   rates,
		logger:  logger,
	}
}

// Materialize 创建 PILOT 预算后首次生成 content / demand
func (r *ContentReconciler) Materialize(ctx context.Context, tx repository.Tx, identity domain.Identity, budget *domain.Budget) (*ReconcileResult, error) {
	return r.reconcile(ctx, tx, identity, budget, false)
}

// Resync 同步需求：删除快照中已不存在的料号和 function，再 upsert
func (r *ContentReconciler) Resync(ctx context.Context, tx repository.Tx, identity domain.Identity, budget *domain.Budget) (*ReconcileResult, error) {
	return r.reconcile(ctx, tx, identity, budget, true)
}

// contentState 同步前已存在的内容行及其需求
type contentState struct {
	content *domain.BudgetContent
	demands map[string]*domain.BudgetDemand // function -> demand
	stale   []string                        // 快照中已不存在的 function
}

func (r *ContentReconciler) reconcile(ctx context.Context, tx repository.Tx, identity domain.Identity, budget *domain.Budget, withDeletion bool) (*ReconcileResult, error) {
	if !budget.IsPilot() {
		return nil, domain.NewValidationError("budget", "budget %s is %s, demand synchronization requires PILOT", budget.Name, budget.BudgetType)
	}
	if err := r.guard.CheckUnlocked(budget); err != nil {
		return nil, err
	}

	// 1. 新鲜需求快照
	if _, err := checkSourceTask(ctx, r.demands, budget.SourceTaskID.String); err != nil {
		return nil, err
	}
	snapshot, err := r.demands.GetPartnumberDemand(ctx, budget.SourceTaskID.String)
	if err != nil {
		return nil, fmt.Errorf("failed to get partnumber demand: %w", err)
	}
	fresh := make(map[string]domain.PartDemand, len(snapshot))
	for _, pd := range snapshot {
		fresh[pd.PartnumberID] = pd
	}

	existing, err := r.loadExisting(ctx, tx, budget.BudgetID)
	if err != nil {
		return nil, err
	}

	// 写入前完成所有检查：会被修改或删除的内容行都要通过跨 function 检查
	var absent []string
	for pnID, st := range existing {
		pd, ok := fresh[pnID]
		var touched bool
		if ok {
			st.stale = staleFunctions(st.demands, pd.FunctionDemandList)
			touched = mergeContent(st.content.Clone(), pd) ||
				demandQtyChanged(st.demands, pd.FunctionDemandList) ||
				(withDeletion && len(st.stale) > 0)
		} else if withDeletion {
			absent = append(absent, pnID)
			touched = true
		}
		if !touched {
			continue
		}
		if err := r.guard.CheckFunctionOverlap(identity, demandList(st.demands)); err != nil {
			return nil, err
		}
	}

	result := &ReconcileResult{}
	actor := identity.Actor()

	if withDeletion {
		// 2. 删除快照中不存在的料号（级联删除 demand）
		if len(absent) > 0 {
			n, err := tx.Contents().DeleteContentsByPartnumbers(ctx, budget.BudgetID, absent)
			if err != nil {
				return nil, err
			}
			result.ContentsDeleted += int(n)
			for _, pnID := range absent {
				delete(existing, pnID)
			}
		}

		// 3. 删除已不存在的 function 需求；清空后的内容行保留
		for _, st := range existing {
			if len(st.stale) == 0 {
				continue
			}
			n, err := tx.Demands().DeleteDemandsByFunctions(ctx, st.content.ContentID, st.stale)
			if err != nil {
				return nil, err
			}
			result.DemandsDeleted += int(n)
			for _, f := range st.stale {
				delete(st.demands, f)
			}
		}
	}

	// 4 / 5. upsert content 与 demand
	for _, pd := range snapshot {
		st, ok := existing[pd.PartnumberID]
		if !ok {
			content, err := r.insertContent(ctx, tx, budget, pd, actor)
			if err != nil {
				return nil, err
			}
			result.ContentsInserted++
			st = &contentState{content: content, demands: map[string]*domain.BudgetDemand{}}
			existing[pd.PartnumberID] = st
		} else if changed := mergeContent(st.content, pd); changed {
			st.content.UpdatedBy = actor
			if err := tx.Contents().UpdateContent(ctx, st.content); err != nil {
				return nil, err
			}
			result.ContentsUpdated++
		}

		for _, fd := range pd.FunctionDemandList {
			d, ok := st.demands[fd.Function]
			if !ok {
				d = &domain.BudgetDemand{
					Function:  fd.Function,
					DemandQty: fd.DemandQty,
					ContentID: st.content.ContentID,
					CreatedBy: actor,
				}
				if err := tx.Demands().CreateDemand(ctx, d); err != nil {
					return nil, err
				}
				st.demands[fd.Function] = d
				result.DemandsInserted++
				continue
			}
			if d.DemandQty == fd.DemandQty {
				continue
			}
			d.DemandQty = fd.DemandQty
			d.UpdatedBy = actor
			if err := tx.Demands().UpdateDemand(ctx, d); err != nil {
				return nil, err
			}
			result.DemandsUpdated++
		}
	}

	r.logger.Info("Budget demand reconciled",
		append([]zap.Field{
			zap.String("budget_id", budget.BudgetID),
			zap.String("source_task_id", budget.SourceTaskID.String),
			zap.Bool("with_deletion", withDeletion),
			zap.Int("snapshot_parts", len(snapshot)),
		}, result.fields()...)...,
	)
	return result, nil
}

func (r *ContentReconciler) loadExisting(ctx context.Context, tx repository.Tx, budgetID string) (map[string]*contentState, error) {
	contents, err := tx.Contents().ListContents(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	demandsByContent, err := tx.Demands().ListDemandsByBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*contentState, len(contents))
	for _, c := range contents {
		st := &contentState{content: c, demands: map[string]*domain.BudgetDemand{}}
		for _, d := range demandsByContent[c.ContentID] {
			st.demands[d.Function] = d
		}
		existing[c.PartnumberID] = st
	}
	return existing, nil
}

func (r *ContentReconciler) insertContent(ctx context.Context, tx repository.Tx, budget *domain.Budget, pd domain.PartDemand, actor string) (*domain.BudgetContent, error) {
	pn, err := r.catalog.GetPartnumber(ctx, pd.PartnumberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partnumber %s: %w", pd.PartnumberID, err)
	}
	rate, err := r.rates.GetExchangeRateToUSD(ctx, pn.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate for %s: %w", pn.Currency, err)
	}
	content := &domain.BudgetContent{
		PartnumberID:      pd.PartnumberID,
		BudgetID:          budget.BudgetID,
		PartNo:            pn.PartNo,
		TotalPurchaseQty:  pd.TotalDemandQty,
		OnHandQty:         pd.OnHandQty,
		UnitPrice:         pn.Price,
		UnitPriceCurrency: pn.Currency,
		ExchangeRateToUSD: rate,
		CreatedBy:         actor,
	}
	if err := tx.Contents().CreateContent(ctx, content); err != nil {
		return nil, err
	}
	return content, nil
}

// mergeContent 只允许 total_purchase_qty 变大，on_hand_qty 总是刷新；价格字段不动
func mergeContent(c *domain.BudgetContent, pd domain.PartDemand) bool {
	changed := false
	if pd.TotalDemandQty > c.TotalPurchaseQty {
		c.TotalPurchaseQty = pd.TotalDemandQty
		changed = true
	}
	if c.OnHandQty != pd.OnHandQty {
		c.OnHandQty = pd.OnHandQty
		changed = true
	}
	return changed
}

func staleFunctions(current map[string]*domain.BudgetDemand, fresh []domain.FunctionDemand) []string {
	keep := make(map[string]struct{}, len(fresh))
	for _, fd := range fresh {
		keep[fd.Function] = struct{}{}
	}
	var stale []string
	for f := range current {
		if _, ok := keep[f]; !ok {
			stale = append(stale, f)
		}
	}
	return stale
}

func demandQtyChanged(current map[string]*domain.BudgetDemand, fresh []domain.FunctionDemand) bool {
	for _, fd := range fresh {
		if d, ok := current[fd.Function]; ok && d.DemandQty != fd.DemandQty {
			return true
		}
	}
	return false
}

func demandList(m map[string]*domain.BudgetDemand) []*domain.BudgetDemand {
	out := make([]*domain.BudgetDemand, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	return out
}

// SyncPricing 用当前料号主数据与汇率覆盖所有内容行的单价、币种、汇率；不修改数量
func (r *ContentReconciler) SyncPricing(ctx context.Context, tx repository.Tx, identity domain.Identity, budget *domain.Budget) (*ReconcileResult, error) {
	if err := r.guard.CheckUnlocked(budget); err != nil {
		return nil, err
	}
	contents, err := tx.Contents().ListContents(ctx, budget.BudgetID)
	if err != nil {
		return nil, err
	}
	demandsByContent, err := tx.Demands().ListDemandsByBudget(ctx, budget.BudgetID)
	if err != nil {
		return nil, err
	}
	for _, c := range contents {
		if err := r.guard.CheckFunctionOverlap(identity, demandsByContent[c.ContentID]); err != nil {
			return nil, err
		}
	}

	result := &ReconcileResult{}
	rateCache := map[string]decimal.Decimal{}
	for _, c := range contents {
		pn, err := r.catalog.GetPartnumber(ctx, c.PartnumberID)
		if err != nil {
			return nil, fmt.Errorf("failed to get partnumber %s: %w", c.PartnumberID, err)
		}
		rate, ok := rateCache[pn.Currency]
		if !ok {
			rate, err = r.rates.GetExchangeRateToUSD(ctx, pn.Currency)
			if err != nil {
				return nil, fmt.Errorf("failed to get exchange rate for %s: %w", pn.Currency, err)
			}
			rateCache[pn.Currency] = rate
		}
		c.UnitPrice = pn.Price
		c.UnitPriceCurrency = pn.Currency
		c.ExchangeRateToUSD = rate
		c.UpdatedBy = identity.Actor()
		if err := tx.Contents().UpdateContent(ctx, c); err != nil {
			return nil, err
		}
		result.ContentsUpdated++
	}

	r.logger.Info("Budget pricing synchronized",
		zap.String("budget_id", budget.BudgetID),
		zap.Int("contents_updated", result.ContentsUpdated),
		zap.Int("currencies", len(rateCache)),
	)
	return result, nil
}
