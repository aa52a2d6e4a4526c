package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state. Orders are created at checkout
// and only ever move between statuses; they are never deleted.
type OrderStatus string

// Order statuses
const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPendingConfig  OrderStatus = "PENDING_CONFIG"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusConfigured     OrderStatus = "CONFIGURED"
	OrderStatusActive         OrderStatus = "ACTIVE"
	OrderStatusRejected       OrderStatus = "REJECTED"
	OrderStatusExpired        OrderStatus = "EXPIRED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

// Payment methods. Card and PayPal settle in the canonical reporting
// currency; Alipay and WeChat settle on the local-currency rail and must be
// divided by the configured conversion rate before entering any sum.
const (
	PaymentMethodCard   = "CARD"
	PaymentMethodPaypal = "PAYPAL"
	PaymentMethodAlipay = "ALIPAY"
	PaymentMethodWechat = "WECHAT"
)

// Order is a purchase placed through an agent's referral link. Amount is in
// the currency implied by PaymentMethod, not necessarily the reporting
// currency. The Stored* columns are an optional per-order commission cache
// written by older checkout code; they are never authoritative.
type Order struct {
	ID            int64           `db:"id" json:"id"`
	SalesCode     string          `db:"sales_code" json:"sales_code"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        OrderStatus     `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`

	StoredCommission     *decimal.Decimal `db:"stored_commission" json:"stored_commission,omitempty"`
	StoredPrimaryShare   *decimal.Decimal `db:"stored_primary_share" json:"stored_primary_share,omitempty"`
	StoredSecondaryShare *decimal.Decimal `db:"stored_secondary_share" json:"stored_secondary_share,omitempty"`
}

// Agent statuses
const (
	AgentStatusActive  = "ACTIVE"
	AgentStatusRemoved = "REMOVED"
)

// AgentTier identifies which commission formula applies to an agent.
type AgentTier string

const (
	TierPrimary     AgentTier = "primary"
	TierSecondary   AgentTier = "secondary"
	TierIndependent AgentTier = "independent"
)

// PrimaryAgent is a top-tier referrer. CommissionRate is a fraction
// (0.40 = 40%); nil means the rate was never configured and the documented
// default must be substituted.
type PrimaryAgent struct {
	ID             int64            `db:"id" json:"id"`
	SalesCode      string           `db:"sales_code" json:"sales_code"`
	Name           string           `db:"name" json:"name"`
	CommissionRate *decimal.Decimal `db:"commission_rate" json:"commission_rate,omitempty"`
	PayoutAccount  string           `db:"payout_account" json:"payout_account,omitempty"`
	Status         string           `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// SecondaryAgent is a second-tier referrer. A non-nil ParentID makes it
// "linked"; nil makes it "independent", in which case it keeps 100% of its
// own commission like a primary does. Unlinking sets Status to REMOVED but
// keeps ParentID so historical orders stay attributed.
type SecondaryAgent struct {
	ID             int64            `db:"id" json:"id"`
	SalesCode      string           `db:"sales_code" json:"sales_code"`
	Name           string           `db:"name" json:"name"`
	CommissionRate *decimal.Decimal `db:"commission_rate" json:"commission_rate,omitempty"`
	ParentID       *int64           `db:"parent_id" json:"parent_id,omitempty"`
	Status         string           `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// Payout is an administrator-entered record of commission actually paid out.
// Paid commission is the sum of payouts; it is never derived from orders.
type Payout struct {
	ID        int64           `db:"id" json:"id"`
	AgentTier AgentTier       `db:"agent_tier" json:"agent_tier"`
	AgentID   int64           `db:"agent_id" json:"agent_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Note      string          `db:"note" json:"note,omitempty"`
	EnteredBy string          `db:"entered_by" json:"entered_by,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Warning codes surfaced on settlement responses.
const (
	WarnDefaultRate      = "DEFAULT_RATE_SUBSTITUTED"
	WarnOrphanedOrder    = "ORPHANED_SUBORDINATE"
	WarnStaleAggregate   = "STALE_STORED_AGGREGATE"
	WarnNegativeOverride = "NEGATIVE_OVERRIDE_CLAMPED"
	WarnCurrencyMismatch = "CURRENCY_MISMATCH"
)

// Warning is a non-fatal diagnostic attached to a settlement so the
// reporting layer can surface it without blocking the whole report.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AgentRef is a lightweight reference to a linked team member.
type AgentRef struct {
	AgentID        int64            `json:"agent_id"`
	SalesCode      string           `json:"sales_code"`
	Name           string           `json:"name"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty"`
}

// AgentSettlement is the per-agent commission report for one time window.
// PendingCommission is always TotalCommission minus PaidCommission,
// rederived on every read.
type AgentSettlement struct {
	AgentID            int64           `json:"agent_id"`
	Tier               AgentTier       `json:"tier"`
	Window             string          `json:"window"`
	DirectAmount       decimal.Decimal `json:"direct_amount"`
	DirectCommission   decimal.Decimal `json:"direct_commission"`
	SubordinateAmount  decimal.Decimal `json:"subordinate_amount"`
	OverrideCommission decimal.Decimal `json:"override_commission"`
	TotalCommission    decimal.Decimal `json:"total_commission"`
	PaidCommission     decimal.Decimal `json:"paid_commission"`
	PendingCommission  decimal.Decimal `json:"pending_commission"`
	EffectiveRatePct   decimal.Decimal `json:"effective_rate_pct"`
	LinkedTeam         []AgentRef      `json:"linked_team"`
	Warnings           []Warning       `json:"warnings"`
	ComputedAt         time.Time       `json:"computed_at"`
}

// SystemOverview is the system-wide rollup for one time window.
type SystemOverview struct {
	TotalOrders     int               `json:"total_orders"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	TotalCommission decimal.Decimal   `json:"total_commission"`
	ByTierCounts    map[AgentTier]int `json:"by_tier_counts"`
	TimeWindow      string            `json:"time_window"`
	Warnings        []Warning         `json:"warnings"`
	ComputedAt      time.Time         `json:"computed_at"`
}
