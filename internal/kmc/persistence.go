package kmc

import (
	"encoding/json"
	"fmt"
)

// SurfaceSnapshot is a point-in-time capture of a lattice: the occupant
// name of every site in row-major order.
type SurfaceSnapshot struct {
	SimulationID SimulationID `json:"simulation_id"`
	X            float64      `json:"x"`
	Steps        int64        `json:"steps"`
	Size         int          `json:"size"`
	Sites        []string     `json:"sites"`
}

// Snapshot captures the current surface of the engine.
func (e *Engine) Snapshot(id SimulationID, x float64) SurfaceSnapshot {
	snap := SurfaceSnapshot{
		SimulationID: id,
		X:            x,
		Steps:        e.steps,
		Size:         e.lattice.Size(),
		Sites:        make([]string, e.lattice.Sites()),
	}
	for i := range snap.Sites {
		if sp := e.lattice.siteAt(i).Occupant; sp != nil {
			snap.Sites[i] = sp.Name
		}
	}
	return snap
}

// ValidateSnapshot checks that the snapshot covers a full lattice and,
// when mech is not nil, that every occupant is a surface species of mech.
func ValidateSnapshot(snapshot SurfaceSnapshot, mech *Mechanism) error {
	if snapshot.Size < 0 {
		return fmt.Errorf("snapshot has negative size %d", snapshot.Size)
	}
	if len(snapshot.Sites) != snapshot.Size*snapshot.Size {
		return fmt.Errorf("snapshot of size %d has %d sites, want %d",
			snapshot.Size, len(snapshot.Sites), snapshot.Size*snapshot.Size)
	}
	for i, name := range snapshot.Sites {
		if name == "" {
			return fmt.Errorf("site at index %d has no occupant", i)
		}
		if mech == nil {
			continue
		}
		sp, ok := mech.Species(name)
		if !ok {
			return fmt.Errorf("site at index %d has invalid species: %s (not found in mechanism)", i, name)
		}
		if !sp.IsSurface() {
			return fmt.Errorf("site at index %d holds fluid species %s", i, name)
		}
	}
	return nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snapshot SurfaceSnapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (SurfaceSnapshot, error) {
	var snapshot SurfaceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return SurfaceSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}
