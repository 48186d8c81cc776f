package types

import (
	"time"

	"github.com/google/uuid"
)

// Trip is the persisted trip a conversation can be grounded on.
type Trip struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Title            string    `json:"title"`
	Destination      string    `json:"destination"`
	Country          string    `json:"country,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	BudgetRange      string    `json:"budget_range,omitempty"`
	Preferences      []string  `json:"preferences,omitempty"`
	SavedPlacesCount int       `json:"saved_places_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TripMessage is one persisted conversation turn attached to a trip.
type TripMessage struct {
	ID        uuid.UUID   `json:"id"`
	TripID    uuid.UUID   `json:"trip_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Metadata  []byte      `json:"metadata,omitempty"` // marshalled AssistantMessage extras
	CreatedAt time.Time   `json:"created_at"`
}

// Context derives the read-only snapshot handed to the orchestration core.
func (t *Trip) Context() TripContext {
	tc := TripContext{
		Title:            t.Title,
		Destination:      t.Destination,
		Country:          t.Country,
		BudgetRange:      t.BudgetRange,
		Preferences:      t.Preferences,
		SavedPlacesCount: t.SavedPlacesCount,
	}
	if t.StartDate != nil && t.EndDate != nil {
		tc.DateRange = t.StartDate.Format("2006-01-02") + " to " + t.EndDate.Format("2006-01-02")
	}
	return tc
}
