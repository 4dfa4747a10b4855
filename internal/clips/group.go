package clips

import (
	"errors"
	"sort"
)

// ErrNoMatches signals a directory without any clip following the naming
// convention. Callers treat it as a skip, not a failure.
var ErrNoMatches = errors.New("no matching clips")

// Group holds every file recorded at one timestamp, at most one per angle.
type Group struct {
	Timestamp string
	Files     []File

	// Duplicates are later files for an angle already present in Files.
	Duplicates []File
}

// Angles returns the angle of each file in the group, in file order.
func (g Group) Angles() []Angle {
	out := make([]Angle, 0, len(g.Files))
	for _, f := range g.Files {
		out = append(out, f.Angle)
	}
	return out
}

// GroupByTimestamp partitions files by exact timestamp. Groups are sorted
// ascending by timestamp; files inside a group by name. When two files share
// a timestamp and an angle the first by name is kept and the rest are listed
// in Duplicates.
func GroupByTimestamp(files []File) ([]Group, error) {
	if len(files) == 0 {
		return nil, ErrNoMatches
	}

	sorted := append([]File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	index := make(map[string]int, len(sorted))
	seen := make(map[string]map[Angle]struct{}, len(sorted))
	groups := make([]Group, 0, len(sorted))

	for _, f := range sorted {
		idx, ok := index[f.Timestamp]
		if !ok {
			idx = len(groups)
			index[f.Timestamp] = idx
			seen[f.Timestamp] = make(map[Angle]struct{}, 4)
			groups = append(groups, Group{Timestamp: f.Timestamp})
		}

		if _, dup := seen[f.Timestamp][f.Angle]; dup {
			groups[idx].Duplicates = append(groups[idx].Duplicates, f)
			continue
		}
		seen[f.Timestamp][f.Angle] = struct{}{}
		groups[idx].Files = append(groups[idx].Files, f)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Timestamp < groups[j].Timestamp })
	return groups, nil
}
