package venue

import "sort"

type Venue struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Capacity         int    `json:"capacity"`
	Type             string `json:"type"`
	IsActive         bool   `json:"isActive"`
	UnderMaintenance bool   `json:"underMaintenance"`
}

// Filter selects allocation candidates. An empty Type matches every type.
type Filter struct {
	MinCapacity int
	Type        string
}

// Bookable reports whether v may receive new bookings under f.
func (v Venue) Bookable(f Filter) bool {
	if !v.IsActive || v.UnderMaintenance {
		return false
	}
	if v.Capacity < f.MinCapacity {
		return false
	}
	return f.Type == "" || v.Type == f.Type
}

// SortCandidates orders venues smallest-adequate first, name as tie-break.
func SortCandidates(vs []Venue) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Capacity != vs[j].Capacity {
			return vs[i].Capacity < vs[j].Capacity
		}
		return vs[i].Name < vs[j].Name
	})
}
