package domain

import "time"

// BudgetEventType 预算事件类型
type BudgetEventType string

const (
	EventBudgetCreated         BudgetEventType = "budget.created"
	EventBudgetLockChanged     BudgetEventType = "budget.lock_changed"
	EventBudgetDeleted         BudgetEventType = "budget.deleted"
	EventBudgetDemandResynced  BudgetEventType = "budget.demand_resynced"
	EventBudgetPricingResynced BudgetEventType = "budget.pricing_resynced"
)

// BudgetEvent 事务提交后发布的预算事件
type BudgetEvent struct {
	Type           BudgetEventType `json:"type"`
	BudgetID       string          `json:"budget_id"`
	BudgetType     BudgetType      `json:"budget_type"`
	IsLock         bool            `json:"is_lock"`
	ExtraBudgetIDs []string        `json:"extra_budget_ids,omitempty"`
	Counters       map[string]int  `json:"counters,omitempty"`
	Actor          string          `json:"actor"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
