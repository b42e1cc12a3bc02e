package analytics

import "sort"

// labelPropagation detects communities over the undirected adjacency
// view. Every entity starts in its own community and repeatedly adopts
// the community carrying the most edge weight among its neighbors until
// no label changes. Singleton communities are dropped from the result;
// cluster membership is sorted so output is stable.
func labelPropagation(adjacency map[string]map[string]int) [][]string {
	if len(adjacency) == 0 {
		return nil
	}

	ids := make([]string, 0, len(adjacency))
	for id := range adjacency {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	labels := make(map[string]int, len(ids))
	for i, id := range ids {
		labels[id] = i
	}

	// Bounded iteration; convergence is usually fast but not guaranteed.
	const maxIterations = 100
	for iteration := 0; iteration < maxIterations; iteration++ {
		changed := false
		next := make(map[string]int, len(labels))

		for _, id := range ids {
			current := labels[id]

			support := make(map[int]int)
			for neighbor, edgeCount := range adjacency[id] {
				if label, ok := labels[neighbor]; ok {
					support[label] += edgeCount
				}
			}

			best := current
			bestCount := 0
			for label, count := range support {
				if count > bestCount || (count == bestCount && label > best) {
					best = label
					bestCount = count
				}
			}
			// Weak support only pulls a label upward, never downward.
			if bestCount <= 1 {
				if best > current {
					next[id] = best
				} else {
					next[id] = current
				}
			} else {
				next[id] = best
			}
			if next[id] != current {
				changed = true
			}
		}

		labels = next
		if !changed {
			break
		}
	}

	grouped := make(map[int][]string)
	for id, label := range labels {
		grouped[label] = append(grouped[label], id)
	}

	var clusters [][]string
	for _, members := range grouped {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		clusters = append(clusters, members)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}
