package domain

import (
	"database/sql"
	"time"
)

// BudgetType 预算类型（固定三种，不可扩展）
type BudgetType string

const (
	BudgetTypePilot      BudgetType = "PILOT"      // 初版预算，来源于 EQ 汇总
	BudgetTypeExtra      BudgetType = "EXTRA"      // 追加预算，绑定某个初版预算
	BudgetTypeAdditional BudgetType = "ADDITIONAL" // 独立预算
)

// IsValid 判断是否为已知类型
func (t BudgetType) IsValid() bool {
	switch t {
	case BudgetTypePilot, BudgetTypeExtra, BudgetTypeAdditional:
		return true
	}
	return false
}

// Budget 预算领域模型（对应 wms_budget 表）
type Budget struct {
	BudgetID      string         `db:"budget_id"`
	Name          string         `db:"name"`
	PhaseID       string         `db:"phase_id"`
	BudgetType    BudgetType     `db:"budget_type"`
	IsLock        bool           `db:"is_lock"`
	SourceTaskID  sql.NullString `db:"source_task_id"`  // 仅 PILOT
	PilotBudgetID sql.NullString `db:"pilot_budget_id"` // 仅 EXTRA

	CreatedBy string    `db:"created_by"`
	UpdatedBy string    `db:"updated_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsPilot 是否为初版预算
func (b *Budget) IsPilot() bool { return b.BudgetType == BudgetTypePilot }

// IsExtra 是否为追加预算
func (b *Budget) IsExtra() bool { return b.BudgetType == BudgetTypeExtra }

// Clone 拷贝（memory store 的事务工作集使用）
func (b *Budget) Clone() *Budget {
	c := *b
	return &c
}
