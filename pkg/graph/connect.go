package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/wayfarer/pkg/world"
)

// AddConnection adds a named connection to a location.
//
// A placeholder target reserves a fresh id from the store. A confirmed target
// must be a loaded location, and its reciprocal edge is written in the same
// step: an existing confirmed edge back to locationID is reused, otherwise one
// named target.ReverseName (or the reverse of name) is created. Both sides are
// persisted or neither is.
func (m *Manager) AddConnection(ctx context.Context, locationID int64, name string, target world.EdgeTarget) (world.ConnectionEdge, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return world.ConnectionEdge{}, fmt.Errorf("connection name is required: %w", world.ErrInvalidConnection)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	conns, ok := m.table[locationID]
	if ok {
		conns = world.CopyConnections(conns)
	}
	m.mu.RUnlock()
	if !ok {
		return world.ConnectionEdge{}, fmt.Errorf("location %d: %w", locationID, world.ErrNotFound)
	}
	if existing, dup := resolveName(conns, name); dup {
		return world.ConnectionEdge{}, fmt.Errorf("location %d already has %q: %w", locationID, existing, world.ErrDuplicateConnection)
	}

	var edge world.ConnectionEdge
	var err error
	if target.Placeholder {
		edge, err = m.addPlaceholder(ctx, locationID, name, conns, target)
	} else {
		edge, err = m.addConfirmed(ctx, locationID, name, conns, target)
	}
	if err != nil {
		m.logger.Warn("Failed to add connection", "location_id", locationID, "connection", name, "error", err)
		return world.ConnectionEdge{}, err
	}

	m.logger.Info("Connection added", "location_id", locationID, "connection", name,
		"target_id", edge.TargetID, "placeholder", edge.IsPlaceholder)
	return edge, nil
}

func (m *Manager) addPlaceholder(ctx context.Context, locationID int64, name string, conns map[string]world.ConnectionEdge, target world.EdgeTarget) (world.ConnectionEdge, error) {
	if target.TargetID != 0 {
		return world.ConnectionEdge{}, fmt.Errorf("placeholder ids are reserved by the store, got %d: %w", target.TargetID, world.ErrInvalidConnection)
	}
	targetID, err := m.store.NextID(ctx)
	if err != nil {
		return world.ConnectionEdge{}, storeErr("reserve location id", err)
	}

	edge := world.ConnectionEdge{
		Name:          name,
		TargetID:      targetID,
		Description:   target.Description,
		IsPlaceholder: true,
	}
	conns[name] = edge
	if err := m.persistConnections(ctx, locationID, conns); err != nil {
		return world.ConnectionEdge{}, err
	}

	m.mu.Lock()
	m.table[locationID] = conns
	m.mu.Unlock()
	return edge, nil
}

func (m *Manager) addConfirmed(ctx context.Context, locationID int64, name string, conns map[string]world.ConnectionEdge, target world.EdgeTarget) (world.ConnectionEdge, error) {
	if target.TargetID == 0 {
		return world.ConnectionEdge{}, fmt.Errorf("confirmed connection needs a target id: %w", world.ErrInvalidConnection)
	}
	if target.TargetID == locationID {
		return world.ConnectionEdge{}, fmt.Errorf("connection %q loops back to location %d: %w", name, locationID, world.ErrInvalidConnection)
	}

	m.mu.RLock()
	targetConns, ok := m.table[target.TargetID]
	if ok {
		targetConns = world.CopyConnections(targetConns)
	}
	originName := m.names[locationID]
	m.mu.RUnlock()
	if !ok {
		return world.ConnectionEdge{}, fmt.Errorf("target location %d: %w", target.TargetID, world.ErrNotFound)
	}

	edge := world.ConnectionEdge{Name: name, TargetID: target.TargetID, Description: target.Description}
	previous := world.CopyConnections(conns)
	conns[name] = edge

	// The target may already point back; only a missing reciprocal is written.
	_, reciprocated := findReciprocal(targetConns, locationID)
	if !reciprocated {
		reverse := strings.TrimSpace(target.ReverseName)
		if reverse == "" {
			reverse = world.ReverseDirection(name, originName)
		}
		if existing, dup := resolveName(targetConns, reverse); dup {
			return world.ConnectionEdge{}, fmt.Errorf("target location %d already has %q: %w", target.TargetID, existing, world.ErrDuplicateConnection)
		}
		targetConns[reverse] = world.ConnectionEdge{
			Name:        reverse,
			TargetID:    locationID,
			Description: target.ReverseDescription,
		}
	}

	if err := m.persistConnections(ctx, locationID, conns); err != nil {
		return world.ConnectionEdge{}, err
	}
	if !reciprocated {
		if err := m.persistConnections(ctx, target.TargetID, targetConns); err != nil {
			if rerr := m.persistConnections(ctx, locationID, previous); rerr != nil {
				m.logger.Error("Failed to revert one-sided connection", "location_id", locationID,
					"connection", name, "error", rerr)
				return world.ConnectionEdge{}, errors.Join(err, rerr)
			}
			return world.ConnectionEdge{}, err
		}
	}

	m.mu.Lock()
	m.table[locationID] = conns
	m.table[target.TargetID] = targetConns
	m.mu.Unlock()
	return edge, nil
}
