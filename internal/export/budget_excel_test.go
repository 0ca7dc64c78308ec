package export

import (
	"bytes"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wms-budget/internal/domain"
)

func TestGenerateBudgetContentExport(t *testing.T) {
	budget := &domain.Budget{BudgetID: "b-1", Name: "Pilot P1", BudgetType: domain.BudgetTypePilot}
	content := &domain.BudgetContent{
		ContentID:         "c-1",
		PartnumberID:      "pn-A",
		PartNo:            "PN-A-001",
		TotalPurchaseQty:  10,
		OnHandQty:         2,
		UnitPrice:         decimal.RequireFromString("100"),
		UnitPriceCurrency: "TWD",
		ExchangeRateToUSD: decimal.RequireFromString("0.03"),
	}
	content.Buyer = sql.NullString{String: "alice", Valid: true}
	content.LeadTimeWeeksLow = sql.NullInt64{Int64: 2, Valid: true}
	content.LeadTimeWeeksHigh = sql.NullInt64{Int64: 4, Valid: true}
	content.ReimburseCustomerCheck = sql.NullBool{Bool: false, Valid: true}

	lines := []domain.ContentLine{{
		Content: content,
		Demands: []*domain.BudgetDemand{
			{Function: "QA", DemandQty: 3, ContentID: "c-1"},
			{Function: "PE", DemandQty: 5, ContentID: "c-1"},
		},
	}}

	data, err := GenerateBudgetContentExport(budget, lines)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{contentSheet, demandSheet}, f.GetSheetList())
	assert.Equal(t, contentSheet, f.GetSheetName(f.GetActiveSheetIndex()))

	rows, err := f.GetRows(contentSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ContentExportHeader, rows[0])

	row := rows[1]
	assert.Equal(t, "PN-A-001", row[0])
	assert.Equal(t, "8", row[2])
	assert.Equal(t, "3", row[8])  // USD Unit Price
	assert.Equal(t, "24", row[9]) // USD Total
	assert.Equal(t, "30", row[10])
	assert.Equal(t, "2-4", row[12])
	assert.Equal(t, "alice", row[13])
	assert.Equal(t, "No", row[18])
	assert.Equal(t, "FALSE", row[21])

	demandRows, err := f.GetRows(demandSheet)
	require.NoError(t, err)
	require.Len(t, demandRows, 3)
	assert.Equal(t, []string{"PN-A-001", "QA", "3", "9"}, demandRows[1])
	assert.Equal(t, []string{"PN-A-001", "PE", "5", "15"}, demandRows[2])
}

func TestGenerateBudgetContentExport_Empty(t *testing.T) {
	data, err := GenerateBudgetContentExport(&domain.Budget{Name: "Empty"}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, contentSheet, f.GetSheetName(f.GetActiveSheetIndex()))

	rows, err := f.GetRows(contentSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ContentExportHeader, rows[0])
}
