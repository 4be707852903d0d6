package domain

// MRRBreakdown splits MRR by the plan's original billing cadence.
type MRRBreakdown struct {
	Monthly   float64 `json:"monthly"`
	Annual    float64 `json:"annual"`
	Quarterly float64 `json:"quarterly"`
	Other     float64 `json:"other"`
}

type MRR struct {
	Total     float64      `json:"total"`
	Breakdown MRRBreakdown `json:"breakdown"`
}

type SubscriberMetrics struct {
	Active    int `json:"active"`
	Cancelled int `json:"cancelled"`
	PastDue   int `json:"past_due"`
	Trialing  int `json:"trialing"`
	Total     int `json:"total"`
}

type TrialMetrics struct {
	TotalTrials     int     `json:"total_trials"`
	ActiveTrials    int     `json:"active_trials"`
	ConvertedTrials int     `json:"converted_trials"`
	ConversionRate  float64 `json:"conversion_rate"`
}

type CashFlow struct {
	Gross        float64 `json:"gross"`
	Net          float64 `json:"net"`
	NonRecurring float64 `json:"non_recurring"`
	Recurring    float64 `json:"recurring"`
}

type PaymentMetrics struct {
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"success_rate"`
}

type RefundMetrics struct {
	TotalRefunds   int     `json:"total_refunds"`
	RefundedAmount float64 `json:"refunded_amount"`
	RefundRate     float64 `json:"refund_rate"`
}

type CustomerLifetimeValue struct {
	Average              float64 `json:"average"`
	Median               float64 `json:"median"`
	TotalCustomers       int     `json:"total_customers"`
	TotalLifetimeRevenue float64 `json:"total_lifetime_revenue"`
}

// Movement is one MRR movement category between two snapshots.
type Movement struct {
	Total     float64 `json:"total"`
	Rate      float64 `json:"rate"`
	Customers int     `json:"customers"`
}

type Movements struct {
	New               Movement `json:"new"`
	Expansion         Movement `json:"expansion"`
	Contraction       Movement `json:"contraction"`
	Churn             Movement `json:"churn"`
	Reactivation      Movement `json:"reactivation"`
	NetNewMRR         float64  `json:"net_new_mrr"`
	QuickRatio        float64  `json:"quick_ratio"`
	CustomerChurnRate float64  `json:"customer_churn_rate"`
}

// DataQuality counts records that were excluded from revenue figures.
type DataQuality struct {
	MissingPlans         int `json:"missing_plans"`
	MalformedPlans       int `json:"malformed_plans"`
	AnonymousMemberships int `json:"anonymous_memberships"`
}

// Metrics is the flat document stored with each snapshot.
type Metrics struct {
	MRR                     MRR                   `json:"mrr"`
	ARR                     float64               `json:"arr"`
	ARPU                    float64               `json:"arpu"`
	Subscribers             SubscriberMetrics     `json:"subscribers"`
	ActiveUniqueSubscribers int                   `json:"active_unique_subscribers"`
	Trials                  TrialMetrics          `json:"trials"`
	CashFlow                CashFlow              `json:"cash_flow"`
	Payments                PaymentMetrics        `json:"payments"`
	Refunds                 RefundMetrics         `json:"refunds"`
	AverageSalePrice        float64               `json:"average_sale_price"`
	CLV                     CustomerLifetimeValue `json:"clv"`
	Movements               Movements             `json:"movements"`
	DataQuality             DataQuality           `json:"data_quality"`
}
