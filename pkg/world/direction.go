package world

import (
	"fmt"
	"strings"
)

var opposites = map[string]string{
	"north":      "south",
	"south":      "north",
	"east":       "west",
	"west":       "east",
	"northeast":  "southwest",
	"southwest":  "northeast",
	"northwest":  "southeast",
	"southeast":  "northwest",
	"up":         "down",
	"down":       "up",
	"in":         "out",
	"out":        "in",
	"inside":     "outside",
	"outside":    "inside",
	"forward":    "back",
	"back":       "forward",
	"upstairs":   "downstairs",
	"downstairs": "upstairs",
}

var abbreviations = map[string]string{
	"n":  "north",
	"s":  "south",
	"e":  "east",
	"w":  "west",
	"ne": "northeast",
	"nw": "northwest",
	"se": "southeast",
	"sw": "southwest",
	"u":  "up",
	"d":  "down",
}

// NormalizeConnectionName trims and lowercases a connection name and expands
// compass abbreviations.
func NormalizeConnectionName(name string) string {
	n := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if full, ok := abbreviations[n]; ok {
		return full
	}
	return n
}

// ReverseDirection returns the conventional opposite of a connection name.
// Names without a known opposite fall back to "back to <originName>", or
// "back" when no origin name is known.
func ReverseDirection(name, originName string) string {
	n := NormalizeConnectionName(name)
	if rev, ok := opposites[n]; ok {
		return rev
	}
	if originName == "" {
		return "back"
	}
	return fmt.Sprintf("back to %s", strings.ToLower(originName))
}

// UniqueName returns name, or name suffixed with a counter, so that it does
// not collide with any key in taken.
func UniqueName(name string, taken map[string]ConnectionEdge) string {
	if _, exists := taken[name]; !exists {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s %d", name, i)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
