package httpapi

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"wms-budget/internal/domain"
	"wms-budget/internal/service"
	"wms-budget/internal/valuation"
)

type budgetDTO struct {
	BudgetID      string      `json:"budget_id"`
	Name          string      `json:"name"`
	PhaseID       string      `json:"phase_id"`
	BudgetType    string      `json:"budget_type"`
	IsLock        bool        `json:"is_lock"`
	SourceTaskID  *string     `json:"source_task_id"`
	PilotBudgetID *string     `json:"pilot_budget_id"`
	CreatedBy     string      `json:"created_by"`
	UpdatedBy     string      `json:"updated_by"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Children      []budgetDTO `json:"children,omitempty"`
}

type demandDTO struct {
	DemandID  string           `json:"demand_id"`
	Function  string           `json:"function"`
	DemandQty int              `json:"demand_qty"`
	ContentID string           `json:"content_id"`
	USDTotal  *decimal.Decimal `json:"usd_total,omitempty"`
	CreatedBy string           `json:"created_by"`
	UpdatedBy string           `json:"updated_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type contentDTO struct {
	ContentID               string          `json:"content_id"`
	PartnumberID            string          `json:"partnumber_id"`
	BudgetID                string          `json:"budget_id"`
	PartNo                  string          `json:"part_no"`
	Addition                *string         `json:"addition"`
	LeadTimeWeeksLow        *int64          `json:"lead_time_weeks_low"`
	LeadTimeWeeksHigh       *int64          `json:"lead_time_weeks_high"`
	Buyer                   *string         `json:"buyer"`
	UserDRI                 *string         `json:"user_dri"`
	UserDept                *string         `json:"user_dept"`
	UserDeptManager         *string         `json:"user_dept_manager"`
	Counterpart             *string         `json:"counterpart"`
	ReimburseCustomerCheck  *bool           `json:"reimburse_customer_check"`
	EmergencyPurchaseSubmit *bool           `json:"emergency_purchase_submit"`
	PurchaseReason          *string         `json:"purchase_reason"`
	TotalPurchaseQty        int             `json:"total_purchase_qty"`
	OnHandQty               int             `json:"on_hand_qty"`
	UnitPrice               decimal.Decimal `json:"unit_price"`
	UnitPriceCurrency       string          `json:"unit_price_currency"`
	ExchangeRateToUSD       decimal.Decimal `json:"exchange_rate_to_usd"`
	CreatedBy               string          `json:"created_by"`
	UpdatedBy               string          `json:"updated_by"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

type contentLineDTO struct {
	contentDTO
	valuation.Summary
	Demands []demandDTO `json:"demands"`
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func toBudgetDTO(b *domain.Budget) budgetDTO {
	return budgetDTO{
		BudgetID:      b.BudgetID,
		Name:          b.Name,
		PhaseID:       b.PhaseID,
		BudgetType:    string(b.BudgetType),
		IsLock:        b.IsLock,
		SourceTaskID:  strPtr(b.SourceTaskID),
		PilotBudgetID: strPtr(b.PilotBudgetID),
		CreatedBy:     b.CreatedBy,
		UpdatedBy:     b.UpdatedBy,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func toBudgetDetailDTO(d *service.BudgetDetail) budgetDTO {
	out := toBudgetDTO(d.Budget)
	if d.IsPilot() {
		out.Children = make([]budgetDTO, 0, len(d.Children))
		for _, c := range d.Children {
			out.Children = append(out.Children, toBudgetDTO(c))
		}
	}
	return out
}

func toDemandDTO(d *domain.BudgetDemand) demandDTO {
	return demandDTO{
		DemandID:  d.DemandID,
		Function:  d.Function,
		DemandQty: d.DemandQty,
		ContentID: d.ContentID,
		CreatedBy: d.CreatedBy,
		UpdatedBy: d.UpdatedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toContentDTO(c *domain.BudgetContent) contentDTO {
	return contentDTO{
		ContentID:               c.ContentID,
		PartnumberID:            c.PartnumberID,
		BudgetID:                c.BudgetID,
		PartNo:                  c.PartNo,
		Addition:                strPtr(c.Addition),
		LeadTimeWeeksLow:        int64Ptr(c.LeadTimeWeeksLow),
		LeadTimeWeeksHigh:       int64Ptr(c.LeadTimeWeeksHigh),
		Buyer:                   strPtr(c.Buyer),
		UserDRI:                 strPtr(c.UserDRI),
		UserDept:                strPtr(c.UserDept),
		UserDeptManager:         strPtr(c.UserDeptManager),
		Counterpart:             strPtr(c.Counterpart),
		ReimburseCustomerCheck:  boolPtr(c.ReimburseCustomerCheck),
		EmergencyPurchaseSubmit: boolPtr(c.EmergencyPurchaseSubmit),
		PurchaseReason:          strPtr(c.PurchaseReason),
		TotalPurchaseQty:        c.TotalPurchaseQty,
		OnHandQty:               c.OnHandQty,
		UnitPrice:               c.UnitPrice,
		UnitPriceCurrency:       c.UnitPriceCurrency,
		ExchangeRateToUSD:       c.ExchangeRateToUSD,
		CreatedBy:               c.CreatedBy,
		UpdatedBy:               c.UpdatedBy,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}

func toContentLineDTO(v service.ContentLineView) contentLineDTO {
	out := contentLineDTO{
		contentDTO: toContentDTO(v.Content),
		Summary:    v.Summary,
		Demands:    make([]demandDTO, 0, len(v.Demands)),
	}
	for _, d := range v.Demands {
		dto := toDemandDTO(d)
		if total, ok := v.DemandUSDTotals[d.Function]; ok {
			dto.USDTotal = &total
		}
		out.Demands = append(out.Demands, dto)
	}
	return out
}
