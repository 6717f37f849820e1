package orders

type Status string

const (
	StatusCreated    Status = "created"
	StatusPaid       Status = "paid"
	StatusShipped    Status = "shipped"
	StatusSuccessful Status = "successful"
	StatusCanceled   Status = "canceled"
)

// Event names a lifecycle transition request.
type Event string

const (
	EventMarkPaid Event = "mark_paid"
	EventShip     Event = "ship"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

var validNext = map[Status]map[Event]Status{
	StatusCreated:    {EventMarkPaid: StatusPaid, EventCancel: StatusCanceled},
	StatusPaid:       {EventShip: StatusShipped, EventCancel: StatusCanceled},
	StatusShipped:    {EventComplete: StatusSuccessful},
	StatusSuccessful: {},
	StatusCanceled:   {},
}

// NextStatus resolves an event against the transition table.
func NextStatus(from Status, ev Event) (Status, bool) {
	to, ok := validNext[from][ev]
	return to, ok
}

// Occupying statuses hold their time slot for conflict purposes.
// Cancellation is soft: the row stays but the interval is freed.
func (s Status) Occupying() bool {
	return s != StatusCanceled
}

func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusCanceled
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
