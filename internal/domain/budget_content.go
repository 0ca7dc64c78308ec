package domain

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPartNo 料号尚未建立时的占位值
const DefaultPartNo = "料號新建中"

// ContentDescriptive 预算详情的描述性字段（全部填写后 reply_status 才为 true）
type ContentDescriptive struct {
	Addition                sql.NullString `db:"addition"`
	LeadTimeWeeksLow        sql.NullInt64  `db:"lead_time_weeks_low"`
	LeadTimeWeeksHigh       sql.NullInt64  `db:"lead_time_weeks_high"`
	Buyer                   sql.NullString `db:"buyer"`
	UserDRI                 sql.NullString `db:"user_dri"`
	UserDept                sql.NullString `db:"user_dept"`
	UserDeptManager         sql.NullString `db:"user_dept_manager"`
	Counterpart             sql.NullString `db:"counterpart"`
	ReimburseCustomerCheck  sql.NullBool   `db:"reimburse_customer_check"`
	EmergencyPurchaseSubmit sql.NullBool   `db:"emergency_purchase_submit"`
	PurchaseReason          sql.NullString `db:"purchase_reason"`
}

// BudgetContent 预算详情（对应 wms_budget_content 表），每个 (partnumber, budget) 一行
type BudgetContent struct {
	ContentID    string `db:"content_id"`
	PartnumberID string `db:"partnumber_id"`
	BudgetID     string `db:"budget_id"`
	PartNo       string `db:"part_no"`

	ContentDescriptive

	TotalPurchaseQty  int             `db:"total_purchase_qty"`
	OnHandQty         int             `db:"on_hand_qty"`
	UnitPrice         decimal.Decimal `db:"unit_price"`
	UnitPriceCurrency string          `db:"unit_price_currency"`
	ExchangeRateToUSD decimal.Decimal `db:"exchange_rate_to_usd"`

	CreatedBy string    `db:"created_by"`
	UpdatedBy string    `db:"updated_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Clone 拷贝
func (c *BudgetContent) Clone() *BudgetContent {
	cp := *c
	return &cp
}
