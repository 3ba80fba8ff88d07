package kmc

import "errors"

// Error classes. Every error returned by the engine wraps one of these so
// callers can tell a bad configuration from a run that simply ran out of
// possible events.
var (
	// ErrConfig marks invalid modes, sizes or settings.
	ErrConfig = errors.New("configuration error")
	// ErrInput marks inconsistent mechanism or coverage input.
	ErrInput = errors.New("input error")
	// ErrInvariant marks internal bookkeeping that no longer adds up.
	ErrInvariant = errors.New("invariant violation")
	// ErrNoReaction is returned when the total propensity is zero.
	ErrNoReaction = errors.New("no reaction possible")
	// ErrNoInstances is returned when a reaction is forced but none of its
	// ensembles are on the surface.
	ErrNoInstances = errors.New("no ensemble instances on surface")
	// ErrPlacement is returned when products cannot be laid onto the sites
	// vacated by the reactants.
	ErrPlacement = errors.New("species placement failed")
	// ErrNotInitialized is returned when an object is used before setup.
	ErrNotInitialized = errors.New("not initialized")
)
