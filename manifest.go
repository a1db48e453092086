package mvtoverlay

import (
	"context"
	"sort"
)

// Manifest declares which tiles exist, as closed y ranges per (z, x):
// z → x → [[yStart, yEnd], ...]. A tile outside the manifest is never
// fetched.
type Manifest map[int]map[int][][2]int

// Contains reports whether the manifest lists the tile.
func (m Manifest) Contains(k TileKey) bool {
	xs, ok := m[k.Z]
	if !ok {
		return false
	}
	ranges, ok := xs[k.X]
	if !ok {
		return false
	}
	for _, r := range ranges {
		if k.Y >= r[0] && k.Y <= r[1] {
			return true
		}
	}
	return false
}

// TileCount returns the number of tiles the manifest lists, for debug
// logging.
func (m Manifest) TileCount() int {
	n := 0
	for _, xs := range m {
		for _, ranges := range xs {
			for _, r := range ranges {
				if r[1] >= r[0] {
					n += r[1] - r[0] + 1
				}
			}
		}
	}
	return n
}

// Zooms returns the zoom levels present, ascending.
func (m Manifest) Zooms() []int {
	zooms := make([]int, 0, len(m))
	for z := range m {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)
	return zooms
}

// ManifestFunc produces a manifest asynchronously, e.g. from a metadata
// endpoint.
type ManifestFunc func(ctx context.Context) (Manifest, error)

// availabilityOracle answers whether a tile should be fetched. Before the
// manifest has loaded (or with none configured) every tile is allowed.
type availabilityOracle struct {
	manifest Manifest
	loaded   bool
	fn       ManifestFunc
}

// allows reports whether the tile may be fetched.
func (o *availabilityOracle) allows(k TileKey) bool {
	if !o.loaded {
		return true
	}
	return o.manifest.Contains(k)
}

// setStatic installs a static manifest immediately.
func (o *availabilityOracle) setStatic(m Manifest) {
	o.manifest = m
	o.loaded = m != nil
	o.fn = nil
}

// setFunc installs an async producer; load must be called to pull it.
func (o *availabilityOracle) setFunc(fn ManifestFunc) {
	o.manifest = nil
	o.loaded = false
	o.fn = fn
}

// reset forgets the manifest and producer.
func (o *availabilityOracle) reset() {
	o.manifest = nil
	o.loaded = false
	o.fn = nil
}
