// Package event describes household change notifications.
package event

// Event announces that an entity in a household changed.
type Event struct {
	HouseholdID int64
	Entity      string
	Action      string
	ID          int64
	Extra       map[string]any
}

// Publisher delivers events to whoever is listening for the household.
// Delivery is best-effort; a publisher must not block the caller.
type Publisher interface {
	Publish(Event)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
