package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

// SetEvent renders a submitted order set. The kind is partial_submission
// unless every leg was accepted.
func SetEvent(set domain.OrderSet) Event {
	kind := EventOrderSetSubmitted
	title := "Order set submitted"
	if set.Status != domain.SetStatusSubmitted {
		kind = EventPartialSubmission
		title = "Order set " + string(set.Status)
	}

	conv := fixedpoint.Default()
	var b strings.Builder
	fmt.Fprintf(&b, "set %s wallet %s sub %d\n", set.ID, shortWallet(set.Wallet), set.Subaccount)
	for _, o := range set.Orders {
		fmt.Fprintf(&b, "%s %s %s %s", o.Order.Tag, o.Order.Direction, o.Order.Kind, conv.Format(o.Order.Size))
		if o.Order.Price != nil {
			fmt.Fprintf(&b, " @ %s", conv.Format(*o.Order.Price))
		}
		if o.Order.TriggerPrice != nil {
			fmt.Fprintf(&b, " trigger %s", conv.Format(*o.Order.TriggerPrice))
		}
		fmt.Fprintf(&b, ": %s", o.Status)
		if o.Message != "" && o.Status != domain.OrderStatusAccepted {
			fmt.Fprintf(&b, " (%s)", o.Message)
		}
		b.WriteByte('\n')
	}
	return Event{Kind: kind, Title: title, Body: strings.TrimRight(b.String(), "\n")}
}

// ErrorEvent renders an operational failure.
func ErrorEvent(op string, err error) Event {
	return Event{Kind: EventError, Title: "perpdash error: " + op, Body: err.Error()}
}

func shortWallet(w string) string {
	if len(w) <= 12 {
		return w
	}
	return w[:6] + "..." + w[len(w)-4:]
}
