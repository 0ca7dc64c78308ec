// Package valuation 预算详情的派生金额计算（纯函数，读取时计算，不落库）
package valuation

import (
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"

	"wms-budget/internal/domain"
)

// Summary 一行预算详情的全部派生值
type Summary struct {
	USDUnitPrice   decimal.Decimal `json:"usd_unit_price"`
	TotalDemandQty int             `json:"total_demand_qty"`
	USDTotal       decimal.Decimal `json:"usd_total"`
	USDAdditional  decimal.Decimal `json:"usd_additional"`
	ReplyStatus    bool            `json:"reply_status"`
}

// USDUnitPrice 美元单价 = 单价 × 汇率（直接相乘，不做币种舍入）
func USDUnitPrice(c *domain.BudgetContent) decimal.Decimal {
	return c.UnitPrice.Mul(c.ExchangeRateToUSD)
}

// TotalDemandQty 需求总数 = Σ demand_qty
func TotalDemandQty(demands []*domain.BudgetDemand) int {
	total := 0
	for _, d := range demands {
		total += d.DemandQty
	}
	return total
}

// USDTotal 美元总额，按需求总数计算
func USDTotal(c *domain.BudgetContent, demands []*domain.BudgetDemand) decimal.Decimal {
	return USDUnitPrice(c).Mul(decimal.NewFromInt(int64(TotalDemandQty(demands))))
}

// USDAdditional 美元采购额，按采购数量（total_purchase_qty）计算
func USDAdditional(c *domain.BudgetContent) decimal.Decimal {
	return USDUnitPrice(c).Mul(decimal.NewFromInt(int64(c.TotalPurchaseQty)))
}

// DemandUSDTotal 单条 function 需求的美元金额
func DemandUSDTotal(c *domain.BudgetContent, d *domain.BudgetDemand) decimal.Decimal {
	return USDUnitPrice(c).Mul(decimal.NewFromInt(int64(d.DemandQty)))
}

// ReplyStatus 描述性字段是否全部已填写
func ReplyStatus(c *domain.BudgetContent) bool {
	d := c.ContentDescriptive
	return filled(d.Addition) &&
		d.LeadTimeWeeksLow.Valid &&
		d.LeadTimeWeeksHigh.Valid &&
		filled(d.Buyer) &&
		filled(d.UserDRI) &&
		filled(d.UserDept) &&
		filled(d.UserDeptManager) &&
		filled(d.Counterpart) &&
		d.ReimburseCustomerCheck.Valid &&
		d.EmergencyPurchaseSubmit.Valid &&
		filled(d.PurchaseReason)
}

func filled(s sql.NullString) bool {
	return s.Valid && strings.TrimSpace(s.String) != ""
}

// Summarize 计算全部派生值
func Summarize(c *domain.BudgetContent, demands []*domain.BudgetDemand) Summary {
	return Summary{
		USDUnitPrice:   USDUnitPrice(c),
		TotalDemandQty: TotalDemandQty(demands),
		USDTotal:       USDTotal(c, demands),
		USDAdditional:  USDAdditional(c),
		ReplyStatus:    ReplyStatus(c),
	}
}
