// Package aggregate reduces daily snapshot documents into day, week, month,
// quarter and year buckets.
package aggregate

// Reduction is how a field combines across the snapshots of one bucket.
type Reduction int

const (
	// Average suits point-in-time state such as MRR.
	Average Reduction = iota
	// Sum suits flows accumulated over the period.
	Sum
)

// Field maps a history key onto a dotted path in the metrics document.
type Field struct {
	Key    string
	Path   string
	Reduce Reduction
}

// Fields is the history row layout.
var Fields = []Field{
	{Key: "mrr", Path: "mrr.total", Reduce: Average},
	{Key: "arr", Path: "arr", Reduce: Average},
	{Key: "arpu", Path: "arpu", Reduce: Average},
	{Key: "active_subscribers", Path: "subscribers.active", Reduce: Average},
	{Key: "active_customers", Path: "active_unique_subscribers", Reduce: Average},
	{Key: "clv", Path: "clv.average", Reduce: Average},
	{Key: "trials", Path: "trials.total_trials", Reduce: Average},
	{Key: "churn_rate", Path: "movements.customer_churn_rate", Reduce: Average},
	{Key: "revenue_churn_rate", Path: "movements.churn.rate", Reduce: Average},
	{Key: "quick_ratio", Path: "movements.quick_ratio", Reduce: Average},

	{Key: "revenue", Path: "cash_flow.gross", Reduce: Sum},
	{Key: "net_revenue", Path: "cash_flow.net", Reduce: Sum},
	{Key: "recurring_revenue", Path: "cash_flow.recurring", Reduce: Sum},
	{Key: "non_recurring_revenue", Path: "cash_flow.non_recurring", Reduce: Sum},
	{Key: "new_customers", Path: "movements.new.customers", Reduce: Sum},
	{Key: "new_mrr", Path: "movements.new.total", Reduce: Sum},
	{Key: "upgrades", Path: "movements.expansion.customers", Reduce: Sum},
	{Key: "expansion_mrr", Path: "movements.expansion.total", Reduce: Sum},
	{Key: "downgrades", Path: "movements.contraction.customers", Reduce: Sum},
	{Key: "contraction_mrr", Path: "movements.contraction.total", Reduce: Sum},
	{Key: "reactivations", Path: "movements.reactivation.customers", Reduce: Sum},
	{Key: "reactivation_mrr", Path: "movements.reactivation.total", Reduce: Sum},
	{Key: "cancellations", Path: "movements.churn.customers", Reduce: Sum},
	{Key: "churned_mrr", Path: "movements.churn.total", Reduce: Sum},
	{Key: "successful_payments", Path: "payments.successful", Reduce: Sum},
	{Key: "failed_charges", Path: "payments.failed", Reduce: Sum},
	{Key: "refunds", Path: "refunds.total_refunds", Reduce: Sum},
	{Key: "refunded_amount", Path: "refunds.refunded_amount", Reduce: Sum},
}
