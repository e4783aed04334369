package devp2p

import "sort"

// Negotiate computes the capabilities both sides can use. For every
// protocol name offered by both, the highest version present on both
// sides is selected. The result is sorted by name, then version.
func Negotiate(local, remote []Cap) ([]Cap, error) {
	remoteVersions := make(map[string]map[uint64]bool)
	for _, c := range remote {
		if remoteVersions[c.Name] == nil {
			remoteVersions[c.Name] = make(map[uint64]bool)
		}
		remoteVersions[c.Name][c.Version] = true
	}

	best := make(map[string]uint64)
	for _, c := range local {
		if !remoteVersions[c.Name][c.Version] {
			continue
		}
		if v, ok := best[c.Name]; !ok || c.Version > v {
			best[c.Name] = c.Version
		}
	}
	if len(best) == 0 {
		return nil, ErrNoSharedCapabilities
	}

	shared := make([]Cap, 0, len(best))
	for name, version := range best {
		shared = append(shared, Cap{Name: name, Version: version})
	}
	sort.Slice(shared, func(i, j int) bool {
		if shared[i].Name != shared[j].Name {
			return shared[i].Name < shared[j].Name
		}
		return shared[i].Version < shared[j].Version
	})
	return shared, nil
}
