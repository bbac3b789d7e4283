package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

// Traverse resolves a traversal of the named connection from originID.
//
// Unknown locations and connections are Blocked and change nothing. A confirmed
// edge whose target is stored is a Visit. A placeholder edge, or a confirmed
// edge whose target has been lost from the store, is materialized; concurrent
// traversals that would create the same location share one materialization,
// and every caller sees its result labelled with its own origin and connection.
// Synthesizer and store failures are reported as Failed outcomes and leave the
// table as it was.
//
// A caller whose context ends first gets Failed(Timeout), with Err wrapping
// world.ErrTimeout on a deadline and context.Canceled on cancellation. The
// shared materialization keeps running under the synthesis timeout and may
// still commit; a later traversal of the edge then sees the new location.
func (m *Manager) Traverse(ctx context.Context, originID int64, name string) world.TraversalOutcome {
	start := m.now()
	outcome := m.traverse(ctx, originID, name)
	if m.recorder != nil {
		m.recorder.ObserveTraversal(outcome, m.now().Sub(start))
	}

	switch outcome.Kind {
	case world.OutcomeFailed:
		m.logger.Warn("Traversal failed", "origin_id", originID, "connection", name,
			"reason", outcome.Reason, "error", outcome.Err)
	case world.OutcomeBlocked:
		m.logger.Debug("Traversal blocked", "origin_id", originID, "connection", name)
	default:
		m.logger.Info("Traversal resolved", "origin_id", originID, "connection", name,
			"outcome", outcome.Kind, "location_id", outcome.LocationID)
		m.publish(ctx, outcome)
	}
	return outcome
}

func (m *Manager) traverse(ctx context.Context, originID int64, name string) world.TraversalOutcome {
	m.mu.RLock()
	conns, ok := m.table[originID]
	var key string
	var edge world.ConnectionEdge
	if ok {
		key, ok = resolveName(conns, name)
		edge = conns[key]
	}
	m.mu.RUnlock()
	if !ok {
		return world.Blocked(originID, name)
	}

	if edge.Confirmed() {
		outcome, lost := m.visit(ctx, originID, key, edge)
		if !lost {
			return outcome
		}
		m.logger.Warn("Connection target missing from store, re-materializing",
			"origin_id", originID, "connection", key, "target_id", edge.TargetID)
	}

	ch := m.flights.DoChan(flightKey(originID, key, edge), func() (any, error) {
		// Joined callers must not be failed by the first caller going away.
		return m.materialize(context.WithoutCancel(ctx), originID, key), nil
	})
	select {
	case res := <-ch:
		outcome := res.Val.(world.TraversalOutcome)
		outcome.OriginID = originID
		outcome.Connection = key
		return outcome
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", world.ErrTimeout, err)
		} else {
			err = fmt.Errorf("traversal of %q abandoned by caller: %w", key, err)
		}
		return world.Failed(originID, key, world.ReasonTimeout, err)
	}
}

// visit moves to a confirmed edge's target. lost reports that the target is
// absent from the store.
func (m *Manager) visit(ctx context.Context, originID int64, name string, edge world.ConnectionEdge) (world.TraversalOutcome, bool) {
	loc, err := m.Location(ctx, edge.TargetID)
	if err != nil {
		if errors.Is(err, world.ErrNotFound) {
			return world.TraversalOutcome{}, true
		}
		return world.Failed(originID, name, world.ReasonStoreUnavailable, err), false
	}
	if m.tracker != nil {
		if _, err := m.tracker.RecordVisit(ctx, edge.TargetID); err != nil {
			return world.Failed(originID, name, world.ReasonStoreUnavailable, storeErr("record visit", err)), false
		}
	}
	return world.Visit(originID, name, loc), false
}

func (m *Manager) setMaterializing(key string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		m.materializing[key] = struct{}{}
	} else {
		delete(m.materializing, key)
	}
}

func (m *Manager) materialize(ctx context.Context, originID int64, name string) world.TraversalOutcome {
	key := edgeKey(originID, name)

	// A flight that started after an earlier one finished sees its result here.
	edge, err := m.GetEdge(originID, name)
	if err != nil {
		return world.Blocked(originID, name)
	}
	if edge.Confirmed() {
		if outcome, lost := m.visit(ctx, originID, name, edge); !lost {
			return outcome
		}
	}

	m.setMaterializing(key, true)
	defer m.setMaterializing(key, false)

	origin, err := m.Location(ctx, originID)
	if err != nil {
		return world.Failed(originID, name, world.ReasonStoreUnavailable, err)
	}

	targetID := edge.TargetID
	if targetID == 0 {
		if targetID, err = m.store.NextID(ctx); err != nil {
			return world.Failed(originID, name, world.ReasonStoreUnavailable, storeErr("reserve location id", err))
		}
	}

	result, reason, err := m.synthesize(ctx, SynthesisRequest{Origin: origin, Connection: name, ReservedID: targetID})
	if err != nil {
		return world.Failed(originID, name, reason, err)
	}

	newConns, err := m.buildConnections(ctx, origin, name, targetID, result)
	if err != nil {
		return world.Failed(originID, name, world.ReasonStoreUnavailable, err)
	}

	loc := &world.Location{
		ID:          targetID,
		Name:        strings.TrimSpace(result.Name),
		Description: strings.TrimSpace(result.Description),
		Items:       result.Items,
		Connections: newConns,
	}
	if err := m.commit(ctx, originID, name, edge, loc); err != nil {
		if errors.Is(err, errAlreadyMaterialized) {
			if current, gerr := m.GetEdge(originID, name); gerr == nil && current.Confirmed() {
				if outcome, lost := m.visit(ctx, originID, name, current); !lost {
					return outcome
				}
			}
		}
		return world.Failed(originID, name, world.ReasonStoreUnavailable, err)
	}

	m.logger.Info("Location materialized", "location_id", loc.ID, "name", loc.Name,
		"origin_id", originID, "connection", name)
	return world.Materialized(originID, name, loc.Clone())
}

// synthesize calls the synthesizer under the synthesis timeout. A synthesizer
// that ignores its context is abandoned at the deadline.
func (m *Manager) synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, world.FailureReason, error) {
	if m.synth == nil {
		return nil, world.ReasonSynthesisFailed, fmt.Errorf("no content synthesizer configured: %w", world.ErrSynthesisFailed)
	}

	sctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type reply struct {
		result *SynthesisResult
		err    error
	}
	done := make(chan reply, 1)
	start := m.now()
	go func() {
		result, err := m.synth.Synthesize(sctx, req)
		done <- reply{result, err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-sctx.Done():
		r = reply{err: sctx.Err()}
	}
	if m.recorder != nil {
		m.recorder.ObserveSynthesis(m.now().Sub(start), r.err)
	}

	switch {
	case r.err != nil && (errors.Is(r.err, context.DeadlineExceeded) || errors.Is(sctx.Err(), context.DeadlineExceeded)):
		return nil, world.ReasonTimeout, fmt.Errorf("synthesis of location %d after %s: %w", req.ReservedID, m.timeout, world.ErrTimeout)
	case r.err != nil:
		return nil, world.ReasonSynthesisFailed, fmt.Errorf("%w: %w", world.ErrSynthesisFailed, r.err)
	case r.result == nil || strings.TrimSpace(r.result.Name) == "":
		return nil, world.ReasonSynthesisFailed, fmt.Errorf("synthesizer returned no location name: %w", world.ErrSynthesisFailed)
	}
	return r.result, world.ReasonNone, nil
}

// buildConnections turns a synthesis result into the new location's edges.
// The way back to the origin is always a confirmed edge to originID. Lost
// locations also get back every surviving inbound confirmed edge. Other exits
// become placeholders with freshly reserved ids.
func (m *Manager) buildConnections(ctx context.Context, origin *world.Location, name string, targetID int64, result *SynthesisResult) (map[string]world.ConnectionEdge, error) {
	proposed := make(map[string]EdgeSpec, len(result.Connections))
	for n, spec := range result.Connections {
		if n = strings.TrimSpace(n); n != "" {
			proposed[n] = spec
		}
	}

	back := backName(origin, name, result, proposed)
	conns := map[string]world.ConnectionEdge{
		back: {
			Name:        back,
			TargetID:    origin.ID,
			Description: proposed[back].Description,
		},
	}
	delete(proposed, back)

	m.mu.RLock()
	var inbound []int64
	for _, id := range sortedIDs(m.table) {
		if id == origin.ID || id == targetID {
			continue
		}
		if _, ok := findReciprocal(m.table[id], targetID); ok {
			inbound = append(inbound, id)
		}
	}
	names := make(map[int64]string, len(inbound))
	for _, id := range inbound {
		names[id] = m.names[id]
	}
	m.mu.RUnlock()

	for _, id := range inbound {
		n := world.UniqueName("back to "+strings.ToLower(names[id]), conns)
		conns[n] = world.ConnectionEdge{Name: n, TargetID: id}
	}

	exits := make([]string, 0, len(proposed))
	for n := range proposed {
		exits = append(exits, n)
	}
	sort.Strings(exits)
	for _, n := range exits {
		if _, taken := resolveName(conns, n); taken {
			continue
		}
		id, err := m.store.NextID(ctx)
		if err != nil {
			return nil, storeErr("reserve location id", err)
		}
		conns[n] = world.ConnectionEdge{
			Name:          n,
			TargetID:      id,
			Description:   proposed[n].Description,
			IsPlaceholder: true,
		}
	}
	return conns, nil
}

// backName picks the name of the edge leading back to the origin: the
// synthesizer's explicit choice, then a proposed exit aimed at the origin, then
// a proposed exit named as the reverse of the traversed connection, then a
// derived name.
func backName(origin *world.Location, name string, result *SynthesisResult, proposed map[string]EdgeSpec) string {
	if n := strings.TrimSpace(result.BackConnection); n != "" {
		return n
	}
	candidates := make([]string, 0, len(proposed))
	for n := range proposed {
		candidates = append(candidates, n)
	}
	sort.Strings(candidates)
	for _, n := range candidates {
		if proposed[n].TargetID == origin.ID {
			return n
		}
	}
	reverse := world.ReverseDirection(name, "")
	for _, n := range candidates {
		if world.NormalizeConnectionName(n) == reverse {
			return n
		}
	}
	return world.ReverseDirection(name, origin.Name)
}

// errAlreadyMaterialized reports that the location was written by someone else
// while it was being synthesized.
var errAlreadyMaterialized = errors.New("location already materialized")

// commit persists a materialized location and confirms the origin edge, then
// updates the table. Nothing in memory changes unless both writes succeed.
//
// An entity already stored at a placeholder's reserved id is left over from an
// earlier commit whose cleanup failed. Nothing in the table points at it, so
// it is overwritten.
func (m *Manager) commit(ctx context.Context, originID int64, name string, edge world.ConnectionEdge, loc *world.Location) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	e, err := loc.ToEntity()
	if err != nil {
		return err
	}
	if _, err := m.store.Create(ctx, e); err != nil {
		if !errors.Is(err, storage.ErrExists) {
			return storeErr(fmt.Sprintf("create location %d", loc.ID), err)
		}
		current, gerr := m.GetEdge(originID, name)
		if gerr != nil || current != edge || !edge.IsPlaceholder || edge.TargetID != loc.ID {
			return fmt.Errorf("location %d: %w", loc.ID, errAlreadyMaterialized)
		}
		m.logger.Warn("Overwriting orphaned location", "location_id", loc.ID,
			"origin_id", originID, "connection", name)
		found, uerr := m.store.Update(ctx, e)
		if uerr != nil {
			return storeErr(fmt.Sprintf("overwrite location %d", loc.ID), uerr)
		}
		if !found {
			return storeErr(fmt.Sprintf("overwrite location %d", loc.ID), err)
		}
		e.CreatedAt = e.UpdatedAt
	}
	loc.CreatedAt = e.CreatedAt
	loc.UpdatedAt = e.UpdatedAt

	m.mu.RLock()
	originConns := world.CopyConnections(m.table[originID])
	m.mu.RUnlock()
	originConns[name] = world.ConnectionEdge{Name: name, TargetID: loc.ID, Description: edge.Description}

	if err := m.persistConnections(ctx, originID, originConns); err != nil {
		if _, derr := m.store.Delete(ctx, loc.ID); derr != nil {
			m.logger.Error("Failed to remove orphaned location", "location_id", loc.ID, "error", derr)
		}
		return err
	}

	m.mu.Lock()
	m.table[loc.ID] = world.CopyConnections(loc.Connections)
	m.names[loc.ID] = loc.Name
	m.table[originID] = originConns
	m.mu.Unlock()

	if m.tracker == nil {
		return nil
	}
	current, err := m.tracker.Current(ctx, loc.ID)
	if err != nil {
		return storeErr("load world state", err)
	}
	if current == nil {
		if _, err := m.tracker.Initialize(ctx, loc.ID); err != nil {
			return storeErr("initialize world state", err)
		}
	}
	if _, err := m.tracker.RecordVisit(ctx, loc.ID); err != nil {
		return storeErr("record visit", err)
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, outcome world.TraversalOutcome) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishTraversal(ctx, outcome); err != nil {
		m.logger.Warn("Failed to publish traversal", "location_id", outcome.LocationID, "error", err)
	}
}
