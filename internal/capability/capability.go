// Package capability computes, for every source key, the set of output codes
// the engine could ever emit for it. The union is what the virtual device
// declares when it is created; capabilities cannot change afterwards.
package capability

import (
	"slices"

	"github.com/pleimann/camel-keys/internal/action"
	"github.com/pleimann/camel-keys/internal/keymap"
	"github.com/pleimann/camel-keys/internal/keys"
)

// Map is indexed by source index. Each set is sorted and free of duplicates.
type Map struct {
	sets [][]keys.OutputCode
}

// Compute walks every action in every layer, including both HoldTap
// branches. It is a pure function of km.
func Compute(km *keymap.Keymap) Map {
	sets := make([][]keys.OutputCode, km.Len())
	for li := 0; li < km.NumLayers(); li++ {
		layer, err := km.LayerFor(li)
		if err != nil {
			continue
		}
		for i, a := range layer.Actions {
			sets[i] = append(sets[i], action.Outputs(a)...)
		}
	}
	for i := range sets {
		slices.Sort(sets[i])
		sets[i] = slices.Compact(sets[i])
		if len(sets[i]) == 0 {
			sets[i] = nil
		}
	}
	return Map{sets: sets}
}

// Len returns the number of source indices.
func (m Map) Len() int { return len(m.sets) }

// For returns a copy of the codes reachable from source index i.
func (m Map) For(i int) []keys.OutputCode {
	if i < 0 || i >= len(m.sets) {
		return nil
	}
	return slices.Clone(m.sets[i])
}

// Contains reports whether code is reachable from source index i.
func (m Map) Contains(i int, code keys.OutputCode) bool {
	if i < 0 || i >= len(m.sets) {
		return false
	}
	_, found := slices.BinarySearch(m.sets[i], code)
	return found
}

// All returns the sorted union over every index.
func (m Map) All() []keys.OutputCode {
	var all []keys.OutputCode
	for _, s := range m.sets {
		all = append(all, s...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// Equal reports whether both maps hold the same sets at the same indices.
func (m Map) Equal(o Map) bool {
	return slices.EqualFunc(m.sets, o.sets, func(a, b []keys.OutputCode) bool {
		return slices.Equal(a, b)
	})
}

// Covers reports whether every code reachable in o is in m's union.
func (m Map) Covers(o Map) bool {
	return o.Within(m.All())
}

// Within reports whether every code reachable in m is in declared, which
// must be sorted.
func (m Map) Within(declared []keys.OutputCode) bool {
	for _, code := range m.All() {
		if _, found := slices.BinarySearch(declared, code); !found {
			return false
		}
	}
	return true
}
