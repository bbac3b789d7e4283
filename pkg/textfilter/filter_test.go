package textfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfanityFilter_FilterText(t *testing.T) {
	filter := NewProfanityFilter()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple replacement", "What the hell is going on?", "What the heck is going on?"},
		{"multiple", "This is damn crap!", "This is dang crud!"},
		{"uppercase", "DAMN that's annoying!", "DANG that's annoying!"},
		{"title case", "Hell no, that's not right", "Heck no, that's not right"},
		{"mixed case", "HeLl yeah, that's DaMn good!", "HeCk yeah, that's DaNg good!"},
		{"word boundaries", "I love classical music", "I love classical music"},
		{"plurals", "There are too many assholes and bastards here!", "There are too many jerks and jerks here!"},
		{"uppercase plural", "DAMNS everywhere", "DANGS everywhere"},
		{"no extra s inside words", "I need to process this data", "I need to process this data"},
		{"punctuation", "What the hell?! That's damn crazy.", "What the heck?! That's dang crazy."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.FilterText(tt.input); got != tt.expected {
				t.Errorf("FilterText() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestProfanityFilter_ContainsProfanity(t *testing.T) {
	filter := NewProfanityFilter()

	tests := []struct {
		input    string
		expected bool
	}{
		{"What the hell is this?", true},
		{"This is a clean sentence", false},
		{"I love classical music", false},
		{"HELL no!", true},
		{"There are multiple hells on earth", true},
		{"", false},
	}

	for _, tt := range tests {
		if got := filter.ContainsProfanity(tt.input); got != tt.expected {
			t.Errorf("ContainsProfanity(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestShouldFilterContent(t *testing.T) {
	tests := map[string]bool{
		"G":      true,
		"PG":     true,
		"PG13":   true,
		"PG-13":  true,
		"pg":     true,
		" PG13 ": true,
		"R":      false,
		"NC-17":  false,
		"":       false,
	}
	for rating, want := range tests {
		if got := ShouldFilterContent(rating); got != want {
			t.Errorf("ShouldFilterContent(%q) = %v, want %v", rating, got, want)
		}
	}
}

func TestNormalizeRating(t *testing.T) {
	assert.Equal(t, "PG13", NormalizeRating(" pg-13 "))
	assert.Equal(t, "R", NormalizeRating("r"))
}

func TestSanitizer(t *testing.T) {
	t.Run("name is title-cased and trimmed", func(t *testing.T) {
		s := NewSanitizer("R")
		assert.Equal(t, "The Hall of the Mountain King", s.Name("  the hall OF  the mountain king. "))
		assert.Equal(t, "Ruined Chapel", s.Name(`"ruined chapel"`))
		assert.Equal(t, "", s.Name("   "))
	})

	t.Run("text filtered by rating", func(t *testing.T) {
		assert.Equal(t, "A dang cold room.", NewSanitizer("PG").Text("A  damn\ncold room."))
		assert.Equal(t, "A damn cold room.", NewSanitizer("R").Text("A  damn\ncold room."))
	})

	t.Run("name filtered by rating", func(t *testing.T) {
		assert.Equal(t, "Heck's Gate", NewSanitizer("G").Name("hell's gate"))
	})

	t.Run("filters only when the rating requires it", func(t *testing.T) {
		assert.True(t, NewSanitizer("PG").Filters("hell's gate"))
		assert.False(t, NewSanitizer("PG").Filters("the quiet gate"))
		assert.False(t, NewSanitizer("R").Filters("hell's gate"))
	})

	t.Run("items deduplicated and sorted", func(t *testing.T) {
		s := NewSanitizer("PG13")
		got := s.Items([]string{"Rusty Key", "torch", " rusty  key ", "", "Torch"})
		assert.Equal(t, []string{"rusty key", "torch"}, got)
	})
}
