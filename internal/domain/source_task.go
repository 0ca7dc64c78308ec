package domain

import "github.com/shopspring/decimal"

// TaskType 源任务类型
type TaskType string

const TaskTypeEQList TaskType = "EQ_LIST"

// TaskStatus 源主任务状态，STARTED 表示仍有子任务未审批
type TaskStatus string

const (
	TaskStatusStarted  TaskStatus = "STARTED"
	TaskStatusApproved TaskStatus = "APPROVED"
	TaskStatusClosed   TaskStatus = "CLOSED"
)

// SourceTask EQ 主任务（外部系统）
type SourceTask struct {
	TaskID      string     `json:"task_id"`
	TaskType    TaskType   `json:"task_type"`
	TaskStatus  TaskStatus `json:"task_status"`
	ProductCode string     `json:"product_code"` // 计算良品库存用
}

// SubTasksApproved 子任务是否全部审批完成
func (t *SourceTask) SubTasksApproved() bool {
	return t.TaskStatus != TaskStatusStarted
}

// FunctionDemand 某 function 对料号的需求数量
type FunctionDemand struct {
	Function  string `json:"function"`
	DemandQty int    `json:"demand_qty"`
}

// PartDemand 新鲜需求快照的一行（已过滤为净需求 > 0）
type PartDemand struct {
	PartnumberID       string           `json:"partnumber_id"`
	TotalDemandQty     int              `json:"total_demand_qty"` // 净需求 = 汇总需求 - 良品库存
	OnHandQty          int              `json:"on_hand_qty"`
	FunctionDemandList []FunctionDemand `json:"function_demand_list"`
}

// Partnumber 料号主数据
type Partnumber struct {
	PartnumberID string          `json:"partnumber_id"`
	PartNo       string          `json:"part_no"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
}
