package calculator

import (
	"time"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

// Side is one point-in-time view of memberships and the plans they reference.
type Side struct {
	Memberships []domain.Membership
	Plans       domain.PlanIndex
}

func NewSide(memberships []domain.Membership, plans []domain.Plan) Side {
	return Side{Memberships: memberships, Plans: domain.IndexPlans(plans)}
}

// MRR returns the total MRR of the side.
func (s Side) MRR() float64 {
	mrr, _ := CalculateMRR(s.Memberships, s.Plans)
	return mrr.Total
}

func (s Side) byID() map[string]domain.Membership {
	out := make(map[string]domain.Membership, len(s.Memberships))
	for _, m := range s.Memberships {
		out[m.ID] = m
	}
	return out
}

// CalculateMovements runs the five movement passes. A nil previous dataset
// yields zero movements.
func CalculateMovements(previous *domain.Dataset, current domain.Dataset, opts domain.MovementOptions) domain.Movements {
	if previous.Empty() {
		return domain.Movements{}
	}

	prev := NewSide(previous.Memberships, previous.Plans)
	curr := NewSide(current.Memberships, current.Plans)
	previousMRR := prev.MRR()

	out := domain.Movements{
		New:          CalculateNewMRR(curr, previousMRR, opts.NewWindowStart()),
		Expansion:    CalculateExpansionMRR(prev, curr, previousMRR),
		Contraction:  CalculateContractionMRR(prev, curr, previousMRR),
		Churn:        CalculateChurnedMRR(prev, curr, previousMRR),
		Reactivation: CalculateReactivationMRR(prev, curr, previousMRR),
	}

	gained := out.New.Total + out.Expansion.Total + out.Reactivation.Total
	lost := out.Contraction.Total + out.Churn.Total
	out.NetNewMRR = gained - lost
	if lost > 0 {
		out.QuickRatio = gained / lost
	}

	previousBase := ActiveUniqueSubscribers(prev.Memberships, opts.PreviousAt)
	out.CustomerChurnRate = percent(float64(out.Churn.Customers), float64(previousBase))
	return out
}

// CalculateExpansionMRR sums MRR increases on memberships present in both sides.
func CalculateExpansionMRR(prev, curr Side, previousMRR float64) domain.Movement {
	before := prev.byID()
	customers := map[string]struct{}{}
	var total float64

	for _, m := range curr.Memberships {
		if !m.Status.Paying() {
			continue
		}
		old, ok := before[m.ID]
		if !ok {
			continue
		}
		currMRR := MembershipMRR(m, curr.Plans)
		prevMRR := MembershipMRR(old, prev.Plans)
		if currMRR > prevMRR {
			total += currMRR - prevMRR
			customers[m.CustomerKey()] = struct{}{}
		}
	}
	return movement(total, previousMRR, len(customers))
}

// CalculateContractionMRR sums MRR decreases that leave the membership above zero.
// Drops to zero are churn.
func CalculateContractionMRR(prev, curr Side, previousMRR float64) domain.Movement {
	before := prev.byID()
	customers := map[string]struct{}{}
	var total float64

	for _, m := range curr.Memberships {
		if !m.Status.Paying() {
			continue
		}
		old, ok := before[m.ID]
		if !ok {
			continue
		}
		currMRR := MembershipMRR(m, curr.Plans)
		prevMRR := MembershipMRR(old, prev.Plans)
		if currMRR < prevMRR && currMRR > 0 {
			total += prevMRR - currMRR
			customers[m.CustomerKey()] = struct{}{}
		}
	}
	return movement(total, previousMRR, len(customers))
}

// CalculateChurnedMRR counts the full previous MRR of every live membership
// whose id is no longer live.
func CalculateChurnedMRR(prev, curr Side, previousMRR float64) domain.Movement {
	live := make(map[string]struct{}, len(curr.Memberships))
	for _, m := range curr.Memberships {
		if m.Status.Live() {
			live[m.ID] = struct{}{}
		}
	}

	customers := map[string]struct{}{}
	var total float64
	for _, m := range prev.Memberships {
		if !m.Status.Live() {
			continue
		}
		if _, ok := live[m.ID]; ok {
			continue
		}
		total += MembershipMRR(m, prev.Plans)
		customers[m.CustomerKey()] = struct{}{}
	}
	return movement(total, previousMRR, len(customers))
}

// CalculateNewMRR credits customers whose first membership was created at or
// after windowStart and is paying.
func CalculateNewMRR(curr Side, previousMRR float64, windowStart time.Time) domain.Movement {
	first := make(map[string]domain.Membership)
	for _, m := range curr.Memberships {
		key := m.CustomerKey()
		seen, ok := first[key]
		if !ok || createdBefore(m, seen) {
			first[key] = m
		}
	}

	var (
		total     float64
		customers int
	)
	for _, m := range first {
		if m.CreatedAt == nil || m.CreatedAt.Before(windowStart) || !m.Status.Paying() {
			continue
		}
		total += MembershipMRR(m, curr.Plans)
		customers++
	}
	return movement(total, previousMRR, customers)
}

// CalculateReactivationMRR credits customers who lapsed before and pay now.
func CalculateReactivationMRR(prev, curr Side, previousMRR float64) domain.Movement {
	lapsed := map[string]struct{}{}
	for _, m := range prev.Memberships {
		if id := m.MemberID(); id != "" && m.Status.Lapsed() {
			lapsed[id] = struct{}{}
		}
	}

	perCustomer := map[string]float64{}
	for _, m := range curr.Memberships {
		id := m.MemberID()
		if id == "" || !m.Status.Paying() {
			continue
		}
		if _, ok := lapsed[id]; !ok {
			continue
		}
		perCustomer[id] += MembershipMRR(m, curr.Plans)
	}

	var total float64
	for _, amount := range perCustomer {
		total += amount
	}
	return movement(total, previousMRR, len(perCustomer))
}

// createdBefore orders memberships by creation time. Unknown creation times sort first.
func createdBefore(a, b domain.Membership) bool {
	switch {
	case a.CreatedAt == nil:
		return b.CreatedAt != nil
	case b.CreatedAt == nil:
		return false
	default:
		return a.CreatedAt.Before(*b.CreatedAt)
	}
}

func movement(total, previousMRR float64, customers int) domain.Movement {
	return domain.Movement{
		Total:     total,
		Rate:      percent(total, previousMRR),
		Customers: customers,
	}
}
