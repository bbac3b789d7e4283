// Package retrieval assembles the context handed to the narrator: where the
// player is, what they did recently and which lore bears on their words.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

const (
	DefaultRecentActions = 5
	DefaultLoreResults   = 3
)

// LocationView is the part of a location the narrator sees.
type LocationView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Items       []string `json:"items,omitempty"`
}

// Lore is a knowledge snippet with its relevance score.
type Lore struct {
	ID       int64          `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Context is everything retrieved for one player input.
type Context struct {
	Location      *LocationView           `json:"location_context,omitempty"`
	State         *world.WorldStateRecord `json:"location_state,omitempty"`
	Exits         []string                `json:"exits,omitempty"`
	RecentActions []*Action               `json:"recent_actions"`
	Lore          []Lore                  `json:"relevant_knowledge"`
}

type Retriever struct {
	store         storage.EntityStore
	graph         *graph.Manager
	tracker       *worldstate.Tracker
	logger        *slog.Logger
	recentActions int
	loreResults   int
}

func New(store storage.EntityStore, g *graph.Manager, tracker *worldstate.Tracker, logger *slog.Logger) *Retriever {
	return &Retriever{
		store:         store,
		graph:         g,
		tracker:       tracker,
		logger:        logger,
		recentActions: DefaultRecentActions,
		loreResults:   DefaultLoreResults,
	}
}

// RelevantContext gathers the location, its state and exits, the most recent
// actions (newest first) and the best-matching lore for text. A locationID of 0
// skips the location part.
func (r *Retriever) RelevantContext(ctx context.Context, text string, locationID int64) (*Context, error) {
	out := &Context{
		RecentActions: []*Action{},
		Lore:          []Lore{},
	}

	query := text
	if locationID != 0 {
		loc, err := r.graph.Location(ctx, locationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load location %d: %w", locationID, err)
		}
		state, err := r.tracker.Current(ctx, locationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load state of location %d: %w", locationID, err)
		}
		out.Location = &LocationView{
			ID:          loc.ID,
			Name:        loc.Name,
			Description: loc.Description,
			Items:       RemainingItems(loc, state),
		}
		out.State = state
		out.Exits = loc.ConnectionNames()
		query += " " + loc.Name
	}

	actions, err := r.recent(ctx)
	if err != nil {
		return nil, err
	}
	out.RecentActions = actions

	lore, err := r.lore(ctx, query)
	if err != nil {
		return nil, err
	}
	out.Lore = lore

	r.logger.Debug("Context retrieved",
		"location_id", locationID,
		"recent_actions", len(out.RecentActions),
		"lore", len(out.Lore))
	return out, nil
}

// RemainingItems lists the location's items the player has not taken yet.
func RemainingItems(loc *world.Location, state *world.WorldStateRecord) []string {
	taken := make(map[string]bool)
	if state != nil {
		for _, item := range state.DiscoveredItems {
			taken[strings.ToLower(item)] = true
		}
	}
	out := make([]string, 0, len(loc.Items))
	for _, item := range loc.Items {
		if !taken[strings.ToLower(item)] {
			out = append(out, item)
		}
	}
	return out
}

func (r *Retriever) recent(ctx context.Context) ([]*Action, error) {
	entities, err := r.store.List(ctx, storage.KindAction)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}

	out := make([]*Action, 0, r.recentActions)
	for i := len(entities) - 1; i >= 0 && len(out) < r.recentActions; i-- {
		a, err := ActionFromEntity(entities[i])
		if err != nil {
			r.logger.Warn("Skipping unreadable action", "entity_id", entities[i].ID, "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Retriever) lore(ctx context.Context, query string) ([]Lore, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return []Lore{}, nil
	}

	entities, err := r.store.List(ctx, storage.KindKnowledge)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}

	scored := make([]Lore, 0)
	for _, e := range entities {
		score := Overlap(terms, Terms(e.Name+" "+e.Description))
		if score == 0 {
			continue
		}
		scored = append(scored, Lore{ID: e.ID, Text: e.Description, Metadata: e.Properties, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if len(scored) > r.loreResults {
		scored = scored[:r.loreResults]
	}
	return scored, nil
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"you": true, "are": true, "was": true, "its": true, "into": true, "from": true,
	"what": true, "who": true, "how": true, "about": true, "has": true, "have": true,
}

// Terms lowercases text, splits it on anything that is not a letter or digit
// and drops stop words and words shorter than three characters.
func Terms(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 || stopWords[w] {
			continue
		}
		out[w] = true
	}
	return out
}

// Overlap is the share of query terms present in doc, from 0 to 1.
func Overlap(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if doc[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
