package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// legOutcome summarises one pass over a set.
type legOutcome struct {
	accepted int
	failed   int
	// first leg error, if any
	cause error
}

// placeLegs sends the set's legs in order and applies policy. Under
// all_or_none the first failure stops placement, every accepted leg is
// cancelled and the remaining legs are marked cancelled without being sent.
func (e *Executor) placeLegs(ctx context.Context, set *domain.OrderSet, policy domain.LegPolicy) legOutcome {
	var out legOutcome
	for i := range set.Orders {
		leg := &set.Orders[i]
		if out.failed > 0 && policy == domain.LegPolicyAllOrNone {
			e.markLeg(leg, domain.OrderStatusCancelled, "", "not sent: earlier leg failed")
			continue
		}

		res, err := e.venue.PlaceOrder(ctx, set.Wallet, set.Subaccount, leg.ID, leg.Order)
		if err == nil && res.Success {
			out.accepted++
			e.markLeg(leg, domain.OrderStatusAccepted, res.VenueID, res.Message)
			continue
		}

		out.failed++
		if err != nil {
			e.markLeg(leg, domain.OrderStatusFailed, "", err.Error())
		} else {
			err = fmt.Errorf("%s: %w", res.Message, domain.ErrInvalidOrder)
			status := res.Status
			if status == "" || status == domain.OrderStatusAccepted {
				status = domain.OrderStatusRejected
			}
			e.markLeg(leg, status, res.VenueID, res.Message)
		}
		if out.cause == nil {
			out.cause = err
		}
		e.logger.WarnContext(ctx, "executor: leg failed",
			slog.String("set_id", set.ID),
			slog.String("tag", string(leg.Order.Tag)),
			slog.String("policy", string(policy)),
			slog.String("error", err.Error()),
		)
	}

	if out.failed > 0 && policy == domain.LegPolicyAllOrNone {
		out.accepted -= e.rollback(ctx, set)
	}
	return out
}

// rollback cancels every accepted leg and returns how many were cancelled.
// Cancellation uses its own context so a cancelled request still unwinds.
func (e *Executor) rollback(ctx context.Context, set *domain.OrderSet) int {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cancelTimeout)
	defer cancel()

	cancelled := 0
	for i := range set.Orders {
		leg := &set.Orders[i]
		if leg.Status != domain.OrderStatusAccepted {
			continue
		}
		if err := e.venue.CancelOrder(cctx, set.Wallet, leg.VenueID); err != nil {
			leg.Message = "cancel failed: " + err.Error()
			e.logger.ErrorContext(ctx, "executor: rollback cancel failed",
				slog.String("set_id", set.ID),
				slog.String("venue_id", leg.VenueID),
				slog.String("error", err.Error()),
			)
			continue
		}
		e.markLeg(leg, domain.OrderStatusCancelled, leg.VenueID, "cancelled: set rolled back")
		cancelled++
	}
	return cancelled
}

func (e *Executor) markLeg(leg *domain.SubmittedOrder, status domain.OrderStatus, venueID, msg string) {
	leg.Status = status
	leg.VenueID = venueID
	leg.Message = msg
	leg.Updated = e.now().UTC()
}

// setStatus derives the set status from the leg outcome.
func setStatus(out legOutcome) domain.SetStatus {
	switch {
	case out.failed == 0:
		return domain.SetStatusSubmitted
	case out.accepted > 0:
		return domain.SetStatusPartial
	default:
		return domain.SetStatusFailed
	}
}
