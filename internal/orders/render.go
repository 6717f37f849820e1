package orders

import (
	"fmt"
	"strings"
	"time"
)

// Render formats the order for a chat reply, times in the display
// timezone. Storage stays UTC; this is presentation only.
func (o *Order) Render(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	locker := o.LockerCode
	if locker == "" {
		locker = "N/A"
	}
	lines := []string{
		"Order ID: " + o.OrderID,
		"Customer: " + o.CustomerName,
		"Contact: " + o.Contact,
		"SKU: " + o.SKU,
		"Start: " + o.StartAt.In(loc).Format(time.RFC3339),
		"End: " + o.EndAt.In(loc).Format(time.RFC3339),
		"Status: " + string(o.Status),
		"Locker Code: " + locker,
	}
	return strings.Join(lines, "\n")
}

// RenderSlots formats a free-slot listing for the suggest-slot reply.
func RenderSlots(sku string, window TimeRange, slots []TimeRange, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	fmtT := func(t time.Time) string { return t.In(loc).Format(time.RFC3339) }
	if len(slots) == 0 {
		return fmt.Sprintf("SKU %s has no free slots between %s and %s.",
			sku, fmtT(window.Start), fmtT(window.End))
	}
	lines := []string{fmt.Sprintf("Free slots for SKU %s between %s and %s:",
		sku, fmtT(window.Start), fmtT(window.End))}
	for _, slot := range slots {
		lines = append(lines, fmt.Sprintf("- %s to %s", fmtT(slot.Start), fmtT(slot.End)))
	}
	return strings.Join(lines, "\n")
}
