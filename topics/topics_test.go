package topics

import "testing"

func TestDefaultsAreValid(t *testing.T) {
	list := Defaults()
	if len(list) == 0 {
		t.Fatal("no default topics")
	}
	seen := make(map[string]bool)
	for _, topic := range list {
		if err := topic.Validate(); err != nil {
			t.Errorf("topic %s: %v", topic.ID, err)
		}
		if seen[topic.ID] {
			t.Errorf("duplicate topic id %s", topic.ID)
		}
		seen[topic.ID] = true
	}
}

func TestByID(t *testing.T) {
	topic, err := ByID("1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if topic.Title != "Alphabet Sounds" {
		t.Fatalf("title = %q", topic.Title)
	}

	if _, err := ByID("missing"); err == nil {
		t.Fatal("expected error for unknown topic")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		topic Topic
		ok    bool
	}{
		{"valid", Topic{ID: "1", Title: "T", DurationMinutes: 3}, true},
		{"no id", Topic{Title: "T", DurationMinutes: 3}, false},
		{"no title", Topic{ID: "1", DurationMinutes: 3}, false},
		{"zero duration", Topic{ID: "1", Title: "T"}, false},
		{"negative duration", Topic{ID: "1", Title: "T", DurationMinutes: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.topic.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
