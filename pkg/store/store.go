package store

import (
	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// Store holds the mounted units of one engine, keyed by hook id.
// This interface abstracts the underlying storage implementation.
type Store interface {
	// Put stores a unit, replacing any unit with the same hook id.
	Put(u *types.MountedUnit) error

	// Get retrieves the unit for a hook id.
	Get(hookID int) (*types.MountedUnit, bool)

	// Delete removes a unit. Deleting a missing id is not an error.
	Delete(hookID int) error

	// IDs returns the stored hook ids in ascending order.
	IDs() []int

	// Len returns the number of stored units.
	Len() int

	// Reset removes every unit.
	Reset()
}
