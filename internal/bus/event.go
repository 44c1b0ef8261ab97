package bus

import "time"

// Event is a domain event carried on the in-process bus. ID is assigned
// at publish time and is shared by every subscriber that receives the event.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}
