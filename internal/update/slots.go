package update

import (
	"fmt"
	"path/filepath"

	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
)

// Slots are the three filesystem locations a transaction works with,
// derived from the path of the live executable.
type Slots struct {
	Current string
	Old     string
	New     string
}

// NewSlots derives the slot paths for the executable at current. A relative
// path is resolved against dir, or the working directory when dir is empty.
func NewSlots(current, dir string) (Slots, error) {
	if current == "" {
		return Slots{}, fmt.Errorf("target path is empty")
	}
	if !filepath.IsAbs(current) && dir != "" {
		current = filepath.Join(dir, current)
	}
	abs, err := filepath.Abs(current)
	if err != nil {
		return Slots{}, fmt.Errorf("resolving target path %s: %w", current, err)
	}
	return Slots{
		Current: abs,
		Old:     abs + types.SlotOld.Suffix(),
		New:     abs + types.SlotNew.Suffix(),
	}, nil
}

// Path returns the location of the named slot.
func (s Slots) Path(name types.SlotName) string {
	switch name {
	case types.SlotOld:
		return s.Old
	case types.SlotNew:
		return s.New
	default:
		return s.Current
	}
}

// Lock returns the path of the lock file guarding the slots.
func (s Slots) Lock() string {
	return s.Current + ".lock"
}
