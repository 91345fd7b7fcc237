package mount

import (
	"errors"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// ErrNilClass is reported when a deferred resolver succeeds without a class.
var ErrNilClass = errors.New("resolver returned a nil class")

// Factory builds unit instances and applies binding changes to them. It is
// called with the coordinator's lock held and must not call back into the
// coordinator.
type Factory interface {
	Mount(class types.Class, req MountRequest) (types.Instance, error)
	Update(inst types.Instance, changes map[string]Change) error
	Unmount(inst types.Instance)
}

// MountRequest carries what a unit needs to be built.
type MountRequest struct {
	Hook    *types.Hook
	Inputs  map[string]any
	Outputs map[string]types.OutputHandler
}

// Change is one input whose value is propagated to a mounted instance.
type Change struct {
	Previous any
	Current  any
}

// ContentChild is a mounted unit nested in another unit's content. Hooks
// without a mounted unit are skipped and their mounted descendants take
// their place.
type ContentChild struct {
	HookID          int
	Instance        types.Instance
	ContentChildren []ContentChild
}

// MountEvent is delivered once a unit is mounted.
type MountEvent struct {
	HookID          int
	ContentChildren []ContentChild
}

// ChangesEvent is delivered when the set of mounted units nested in a unit's
// content changes.
type ChangesEvent struct {
	HookID          int
	ContentChildren []ContentChild
}

// MountListener is implemented by instances that want OnDynamicMount.
type MountListener interface {
	OnDynamicMount(MountEvent)
}

// ChangeListener is implemented by instances that want OnDynamicChanges.
type ChangeListener interface {
	OnDynamicChanges(ChangesEvent)
}

// UnitInfo is a snapshot of a mounted unit.
type UnitInfo struct {
	HookID   int
	Parser   string
	State    types.UnitState
	Pending  bool
	Class    types.Class
	Instance types.Instance
	Inputs   map[string]any
	Outputs  map[string]types.OutputHandler
}
