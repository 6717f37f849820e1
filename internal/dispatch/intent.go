package dispatch

// Intent names one structured tool call the dispatcher can make. Every
// intent declares its own required-field set; the dispatcher fills the
// fields from the utterance and the session's pending call, and asks
// for whatever is still missing before touching the lifecycle manager.
type Intent string

const (
	IntentCreate      Intent = "create"
	IntentQuery       Intent = "query"
	IntentUpdate      Intent = "update"
	IntentPay         Intent = "pay"
	IntentShip        Intent = "ship"
	IntentComplete    Intent = "complete"
	IntentCancel      Intent = "cancel"
	IntentSuggestSlot Intent = "suggest_slot"
	IntentRules       Intent = "rules"
	// IntentNone marks an utterance that carries no new intent; with a
	// pending call it is treated as a continuation of that call.
	IntentNone Intent = "none"
)

// Field names shared by all intents.
const (
	FieldCustomerName = "customer_name"
	FieldContact      = "contact"
	FieldSKU          = "sku"
	FieldStartTime    = "start_time"
	FieldEndTime      = "end_time"
	FieldOrderID      = "order_id"
	FieldLockerCode   = "locker_code"
	FieldQuestion     = "question"
	FieldWindowDays   = "window_days"
	FieldBufferHours  = "buffer_hours"
)

type Schema struct {
	Required []string
	Optional []string
}

var schemas = map[Intent]Schema{
	IntentCreate: {
		Required: []string{FieldCustomerName, FieldContact, FieldSKU, FieldStartTime, FieldEndTime},
		Optional: []string{FieldBufferHours},
	},
	IntentQuery:  {Required: []string{FieldOrderID}},
	IntentUpdate: {
		Required: []string{FieldOrderID},
		Optional: []string{FieldCustomerName, FieldContact, FieldSKU, FieldStartTime, FieldEndTime, FieldLockerCode},
	},
	IntentPay:      {Required: []string{FieldOrderID}},
	IntentShip:     {Required: []string{FieldOrderID, FieldLockerCode}},
	IntentComplete: {Required: []string{FieldOrderID}},
	IntentCancel:   {Required: []string{FieldOrderID}},
	IntentSuggestSlot: {
		Required: []string{FieldSKU, FieldStartTime},
		Optional: []string{FieldEndTime, FieldWindowDays},
	},
	IntentRules: {Required: []string{FieldQuestion}},
}

func (i Intent) Known() bool {
	_, ok := schemas[i]
	return ok
}

// MissingFields lists the required fields not yet present, in schema
// order so clarification replies are stable.
func MissingFields(intent Intent, fields map[string]string) []string {
	var missing []string
	for _, f := range schemas[intent].Required {
		if fields[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
