package calculator

import "github.com/smallbiznis/revlens/internal/revenue/domain"

// CalculateCashFlow sums settled payments. Billing reasons other than creation
// and renewal count toward gross and net only.
func CalculateCashFlow(payments []domain.Payment) domain.CashFlow {
	var out domain.CashFlow
	for _, p := range payments {
		if !p.Settled() {
			continue
		}
		out.Gross += p.Total
		out.Net += p.AmountAfterFees
		switch p.BillingReason {
		case domain.BillingReasonCreation:
			out.NonRecurring += p.Total
		case domain.BillingReasonRenewal:
			out.Recurring += p.Total
		}
	}
	return out
}

func CalculatePaymentMetrics(payments []domain.Payment) domain.PaymentMetrics {
	out := domain.PaymentMetrics{Total: len(payments)}
	for _, p := range payments {
		switch p.Status {
		case domain.PaymentStatusPaid:
			out.Successful++
		case domain.PaymentStatusFailed:
			out.Failed++
		}
	}
	out.SuccessRate = percent(float64(out.Successful), float64(out.Total))
	return out
}

// CalculateRefundMetrics reports refunds relative to paid payments.
func CalculateRefundMetrics(payments []domain.Payment) domain.RefundMetrics {
	var (
		out  domain.RefundMetrics
		paid int
	)
	for _, p := range payments {
		if p.Status == domain.PaymentStatusPaid {
			paid++
		}
		if p.Refunded() {
			out.TotalRefunds++
			out.RefundedAmount += p.RefundedAmount
		}
	}
	out.RefundRate = percent(float64(out.TotalRefunds), float64(paid))
	return out
}

func CalculateAverageSalePrice(payments []domain.Payment) float64 {
	var (
		sum   float64
		count int
	)
	for _, p := range payments {
		if !p.Settled() {
			continue
		}
		sum += p.Total
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
