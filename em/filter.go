package em

import "github.com/theme-lifecycle/themewave/corpus"

// FilterThemes implements spec §4.1's "Theme filtering": after the best
// fit, themes whose AveragePi is at or below (1/K)*tau are dropped.
// Ordering of the surviving themes is irrelevant and this function
// preserves the relative order of the input for determinism. K is the
// number of themes passed in, so calling FilterThemes again on its own
// output uses a higher threshold whenever the first call dropped a theme,
// and can drop further themes; the call is not idempotent in that case.
func FilterThemes(input corpus.EmInput, tau float64) corpus.EmInput {
	k := len(input.Themes)
	if k == 0 {
		return input
	}
	threshold := (1.0 / float64(k)) * tau

	keepIdx := make([]int, 0, k)
	for j, th := range input.Themes {
		if th.AveragePi > threshold {
			keepIdx = append(keepIdx, j)
		}
	}

	kept := make([]corpus.Theme, len(keepIdx))
	for i, j := range keepIdx {
		kept[i] = input.Themes[j]
	}

	keptMixing := make([][]float64, len(input.Mixing))
	for d, row := range input.Mixing {
		newRow := make([]float64, len(keepIdx))
		for i, j := range keepIdx {
			newRow[i] = row[j]
		}
		keptMixing[d] = newRow
	}

	out := input
	out.Themes = kept
	out.Mixing = keptMixing

	assignTopDocuments(out.Themes, out.Mixing)

	return out
}

// assignTopDocuments populates each theme's TopDocuments, document
// indices ordered by descending mixing weight for that theme (spec §6,
// "Outputs": Theme.topDocuments).
func assignTopDocuments(themes []corpus.Theme, mixing [][]float64) {
	for j := range themes {
		order := make([]int, len(mixing))
		for d := range order {
			order[d] = d
		}
		// Simple insertion sort: partitions are modest in document
		// count and this keeps the ordering stable for equal weights,
		// matching the teacher's preference for explicit, fixed loop
		// orders over sort.Slice in numeric hot paths.
		for i := 1; i < len(order); i++ {
			for p := i; p > 0 && mixing[order[p]][j] > mixing[order[p-1]][j]; p-- {
				order[p], order[p-1] = order[p-1], order[p]
			}
		}
		themes[j].TopDocuments = order
	}
}
