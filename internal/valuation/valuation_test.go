package valuation

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"wms-budget/internal/domain"
)

func newContent(price, rate string, purchaseQty int) *domain.BudgetContent {
	return &domain.BudgetContent{
		UnitPrice:         decimal.RequireFromString(price),
		ExchangeRateToUSD: decimal.RequireFromString(rate),
		TotalPurchaseQty:  purchaseQty,
	}
}

func TestUSDUnitPrice(t *testing.T) {
	c := newContent("100.5", "0.14", 0)
	assert.True(t, decimal.RequireFromString("14.07").Equal(USDUnitPrice(c)))
}

func TestTotalsUseDemandVersusPurchaseQty(t *testing.T) {
	c := newContent("10", "2", 70)
	demands := []*domain.BudgetDemand{
		{Function: "QA", DemandQty: 30},
		{Function: "PE", DemandQty: 20},
	}

	assert.Equal(t, 50, TotalDemandQty(demands))
	assert.True(t, decimal.NewFromInt(1000).Equal(USDTotal(c, demands)))
	assert.True(t, decimal.NewFromInt(1400).Equal(USDAdditional(c)))
	assert.True(t, decimal.NewFromInt(600).Equal(DemandUSDTotal(c, demands[0])))
}

func TestTotalDemandQty_Empty(t *testing.T) {
	assert.Equal(t, 0, TotalDemandQty(nil))
	assert.True(t, USDTotal(newContent("3", "1", 0), nil).IsZero())
}

func TestReplyStatus(t *testing.T) {
	c := newContent("1", "1", 0)
	assert.False(t, ReplyStatus(c))

	c.ContentDescriptive = domain.ContentDescriptive{
		Addition:                sql.NullString{String: "NEW", Valid: true},
		LeadTimeWeeksLow:        sql.NullInt64{Int64: 2, Valid: true},
		LeadTimeWeeksHigh:       sql.NullInt64{Int64: 4, Valid: true},
		Buyer:                   sql.NullString{String: "SITE", Valid: true},
		UserDRI:                 sql.NullString{String: "alice", Valid: true},
		UserDept:                sql.NullString{String: "NPI-HWTE", Valid: true},
		UserDeptManager:         sql.NullString{String: "bob", Valid: true},
		Counterpart:             sql.NullString{String: "carol", Valid: true},
		ReimburseCustomerCheck:  sql.NullBool{Bool: false, Valid: true},
		EmergencyPurchaseSubmit: sql.NullBool{Bool: true, Valid: true},
	}
	assert.False(t, ReplyStatus(c), "purchase_reason still empty")

	c.PurchaseReason = sql.NullString{String: "new line", Valid: true}
	assert.True(t, ReplyStatus(c))
}

func TestSummarize(t *testing.T) {
	c := newContent("2.5", "1", 4)
	s := Summarize(c, []*domain.BudgetDemand{{DemandQty: 3}})

	assert.Equal(t, 3, s.TotalDemandQty)
	assert.True(t, decimal.RequireFromString("7.5").Equal(s.USDTotal))
	assert.True(t, decimal.NewFromInt(10).Equal(s.USDAdditional))
	assert.False(t, s.ReplyStatus)
}

func TestReplyStatus_BlankStringIsEmpty(t *testing.T) {
	c := newContent("1", "1", 0)
	c.ContentDescriptive = domain.ContentDescriptive{
		Addition:                sql.NullString{String: "NEW", Valid: true},
		LeadTimeWeeksLow:        sql.NullInt64{Int64: 2, Valid: true},
		LeadTimeWeeksHigh:       sql.NullInt64{Int64: 4, Valid: true},
		Buyer:                   sql.NullString{String: "SITE", Valid: true},
		UserDRI:                 sql.NullString{String: "alice", Valid: true},
		UserDept:                sql.NullString{String: "NPI-HWTE", Valid: true},
		UserDeptManager:         sql.NullString{String: "bob", Valid: true},
		Counterpart:             sql.NullString{String: "  ", Valid: true},
		ReimburseCustomerCheck:  sql.NullBool{Valid: true},
		EmergencyPurchaseSubmit: sql.NullBool{Valid: true},
		PurchaseReason:          sql.NullString{String: "x", Valid: true},
	}
	assert.False(t, ReplyStatus(c))
}
