package selector

import (
	"github.com/cespare/xxhash/v2"

	"redep/internal/deploy/types"
	"redep/internal/util"
)

// ReduceLeaves returns the directories of dirs that have no strict descendant
// in dirs. Creating the leaves creates every other member as an ancestor.
func ReduceLeaves(dirs types.PathSet, style util.PathStyle) types.PathSet {
	all := dirs.Sorted()
	leaves := make(types.PathSet, len(all))
	for _, d := range all {
		leaf := true
		for _, other := range all {
			if style.Contains(d, other) {
				leaf = false
				break
			}
		}
		if leaf {
			leaves.Add(d)
		}
	}
	return leaves
}

// Fingerprint hashes the selected directories and files relative to the
// selection root. Identical trees selected under different roots, or on
// hosts with different separators, hash the same.
func Fingerprint(r types.SelectionResult) uint64 {
	d := xxhash.New()
	write := func(tag byte, set types.PathSet) {
		for _, p := range relSorted(r, set) {
			d.Write([]byte{tag})
			d.WriteString(p)
			d.Write([]byte{0})
		}
	}
	write('d', r.Dirs)
	write('f', r.Files)
	return d.Sum64()
}

func relSorted(r types.SelectionResult, set types.PathSet) []string {
	rels := types.PathSet{}
	for p := range set {
		rel, err := r.Style.Rel(r.Root, p)
		if err != nil {
			rel = p
		}
		rels.Add(r.Style.ToSlash(rel))
	}
	return rels.Sorted()
}
