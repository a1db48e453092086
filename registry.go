package mvtoverlay

// FeatureRegistry maps stable cross-tile feature identity to Feature
// records and holds the global selected and hovered identity sets. It is
// the single source of truth for interaction state; it never mutates
// feature geometry.
//
// All operations are O(1) average. Not thread-safe; the source serializes
// access.
type FeatureRegistry struct {
	features    map[string]*Feature
	selectedIDs map[string]struct{}
	hoveredIDs  map[string]struct{}
}

// NewFeatureRegistry creates an empty registry.
func NewFeatureRegistry() *FeatureRegistry {
	return &FeatureRegistry{
		features:    make(map[string]*Feature),
		selectedIDs: make(map[string]struct{}),
		hoveredIDs:  make(map[string]struct{}),
	}
}

// Register inserts a feature; re-registering an existing id is a no-op.
func (r *FeatureRegistry) Register(f *Feature) {
	if f == nil || f.ID == "" {
		return
	}
	if _, ok := r.features[f.ID]; ok {
		return
	}
	r.features[f.ID] = f
}

// Unregister removes a feature from the map and both identity sets.
func (r *FeatureRegistry) Unregister(id string) {
	delete(r.features, id)
	delete(r.selectedIDs, id)
	delete(r.hoveredIDs, id)
}

// Get returns the feature for an id, or nil.
func (r *FeatureRegistry) Get(id string) *Feature {
	return r.features[id]
}

// Len returns the number of registered features.
func (r *FeatureRegistry) Len() int {
	return len(r.features)
}

// IsSelected reports selected-set membership.
func (r *FeatureRegistry) IsSelected(id string) bool {
	_, ok := r.selectedIDs[id]
	return ok
}

// IsHovered reports hovered-set membership.
func (r *FeatureRegistry) IsHovered(id string) bool {
	_, ok := r.hoveredIDs[id]
	return ok
}

// MarkSelected mutates the selected set and, if the feature is
// materialized, flips its flag.
func (r *FeatureRegistry) MarkSelected(id string, selected bool) {
	if selected {
		r.selectedIDs[id] = struct{}{}
	} else {
		delete(r.selectedIDs, id)
	}
	if f := r.features[id]; f != nil {
		f.selected = selected
	}
}

// MarkHovered mutates the hovered set and, if the feature is materialized,
// flips its flag.
func (r *FeatureRegistry) MarkHovered(id string, hovered bool) {
	if hovered {
		r.hoveredIDs[id] = struct{}{}
	} else {
		delete(r.hoveredIDs, id)
	}
	if f := r.features[id]; f != nil {
		f.hovered = hovered
	}
}

// SelectedIDs returns a snapshot of the selected set.
func (r *FeatureRegistry) SelectedIDs() []string {
	ids := make([]string, 0, len(r.selectedIDs))
	for id := range r.selectedIDs {
		ids = append(ids, id)
	}
	return ids
}

// HoveredIDs returns a snapshot of the hovered set.
func (r *FeatureRegistry) HoveredIDs() []string {
	ids := make([]string, 0, len(r.hoveredIDs))
	for id := range r.hoveredIDs {
		ids = append(ids, id)
	}
	return ids
}

// ClearHovered empties the hovered set and clears materialized flags.
func (r *FeatureRegistry) ClearHovered() {
	for id := range r.hoveredIDs {
		if f := r.features[id]; f != nil {
			f.hovered = false
		}
		delete(r.hoveredIDs, id)
	}
}

// Each calls fn for every registered feature.
func (r *FeatureRegistry) Each(fn func(*Feature)) {
	for _, f := range r.features {
		fn(f)
	}
}

// Reset drops all features and both identity sets.
func (r *FeatureRegistry) Reset() {
	r.features = make(map[string]*Feature)
	r.selectedIDs = make(map[string]struct{})
	r.hoveredIDs = make(map[string]struct{})
}
