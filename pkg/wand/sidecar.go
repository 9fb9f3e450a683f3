package wand

// Sidecar helpers join the registry's sessions with per-device state owned by
// upper layers. Both collections are keyed by the same stable ID, so the join
// is plain map lookups; no aliased references are ever manufactured.
//
// These are free functions because Go methods cannot introduce type
// parameters.

// WithData visits every live session paired with its entry in data, or nil
// when the session has none.
func WithData[D any](r *Registry, data map[ID]*D, fn func(*Session, *D)) {
	for id, s := range r.sessions {
		fn(s, data[id])
	}
}

// WithDefaultData visits every live session paired with its entry in data,
// inserting def() first for sessions that have none.
func WithDefaultData[D any](r *Registry, data map[ID]*D, def func() *D, fn func(*Session, *D)) {
	for id, s := range r.sessions {
		d, ok := data[id]
		if !ok {
			d = def()
			data[id] = d
		}
		fn(s, d)
	}
}

// Retain removes entries from data for which keep returns false. Typical use
// is pruning derived per-device game state after an eviction:
//
//	wand.Retain(scores, func(id wand.ID, _ *Score) bool { return reg.Has(id) })
func Retain[D any](data map[ID]*D, keep func(ID, *D) bool) {
	for id, d := range data {
		if !keep(id, d) {
			delete(data, id)
		}
	}
}
