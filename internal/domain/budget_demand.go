package domain

import "time"

// BudgetDemand 预算需求（对应 wms_budget_demand 表），每个 (function, content) 一行
type BudgetDemand struct {
	DemandID  string `db:"demand_id"`
	Function  string `db:"function"`
	DemandQty int    `db:"demand_qty"`
	ContentID string `db:"content_id"`

	CreatedBy string    `db:"created_by"`
	UpdatedBy string    `db:"updated_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Clone 拷贝
func (d *BudgetDemand) Clone() *BudgetDemand {
	cp := *d
	return &cp
}

// ContentLine 一行预算详情及其需求拆分（只读视图）
type ContentLine struct {
	Content *BudgetContent
	Demands []*BudgetDemand
}

// Functions 返回 demand 行的 function 集合
func Functions(demands []*BudgetDemand) []string {
	out := make([]string, 0, len(demands))
	for _, d := range demands {
		out = append(out, d.Function)
	}
	return out
}
