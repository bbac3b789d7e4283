package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jwebster45206/wayfarer/pkg/world"
)

func TestObserveTraversal(t *testing.T) {
	m := New()
	loc := &world.Location{ID: 2, Name: "Hall"}

	m.ObserveTraversal(world.Visit(1, "north", loc), 5*time.Millisecond)
	m.ObserveTraversal(world.Visit(1, "north", loc), 5*time.Millisecond)
	m.ObserveTraversal(world.Blocked(1, "wall"), time.Millisecond)
	m.ObserveTraversal(world.Failed(1, "east", world.ReasonTimeout, world.ErrTimeout), 45*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.traversals.WithLabelValues("visit", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.traversals.WithLabelValues("blocked", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.traversals.WithLabelValues("failed", "timeout")))
}

func TestObserveSynthesis(t *testing.T) {
	m := New()

	m.ObserveSynthesis(time.Second, nil)
	m.ObserveSynthesis(time.Second, fmt.Errorf("synthesizing: %w", world.ErrTimeout))
	m.ObserveSynthesis(time.Second, errors.New("bad json"))
	m.ObserveSynthesis(time.Second, errors.New("bad json again"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.syntheses.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syntheses.WithLabelValues("timeout")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.syntheses.WithLabelValues("failure")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCommand("look")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `wayfarer_engine_commands_total{verb="look"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
