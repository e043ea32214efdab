package cart

import (
	"time"
)

// Item kinds
const (
	KindCourse  = "course"
	KindSession = "session"
)

type (
	Cart struct {
		ID         string    `json:"id"`
		UserID     string    `json:"user_id,omitempty"`
		SessionKey string    `json:"session_key,omitempty"`
		Items      []Item    `json:"items"`
		CreatedAt  time.Time `json:"created_at"` // UTC
		UpdatedAt  time.Time `json:"updated_at"` // UTC
	}

	// Item references either a course or a session, never both.
	// Title and PriceCents are resolved from the referenced record on read.
	Item struct {
		ID         string    `json:"id"`
		CartID     string    `json:"-"`
		Kind       string    `json:"kind"`
		CourseID   string    `json:"course_id,omitempty"`
		SessionID  string    `json:"session_id,omitempty"`
		Title      string    `json:"title"`
		PriceCents int64     `json:"price_cents"`
		AddedAt    time.Time `json:"added_at"` // UTC
	}
)

// TotalCents sums the current prices of all items.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.PriceCents
	}
	return total
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }
