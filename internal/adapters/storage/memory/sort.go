package memory

import "sort"

// sortByCreated ordena por creación ascendente y desempata por id,
// así los listados no dependen del orden de iteración del map.
func sortByCreated[T any](items []T, key func(T) (id string, created int64)) {
	sort.SliceStable(items, func(i, j int) bool {
		idI, cI := key(items[i])
		idJ, cJ := key(items[j])
		if cI != cJ {
			return cI < cJ
		}
		return idI < idJ
	})
}
