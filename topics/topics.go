// Package topics holds the static video topic catalog.
package topics

import "fmt"

// Topic is one watchable video topic. Duration drives activity checkpoint
// generation: one checkpoint per minute of declared duration.
type Topic struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration"`
}

// Defaults returns the built-in topic list, in display order.
func Defaults() []Topic {
	return []Topic{
		{ID: "1", Title: "Alphabet Sounds", DurationMinutes: 3},
		{ID: "2", Title: "Basic Words", DurationMinutes: 4},
		{ID: "3", Title: "Sentence Building", DurationMinutes: 5},
	}
}

// ByID looks a topic up in the default catalog.
func ByID(id string) (Topic, error) {
	for _, t := range Defaults() {
		if t.ID == id {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("unknown topic: %s", id)
}

// Validate checks a topic is usable for a playback session.
func (t Topic) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("topic id is empty")
	}
	if t.Title == "" {
		return fmt.Errorf("topic title is empty")
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("topic duration must be positive, got %d", t.DurationMinutes)
	}
	return nil
}
