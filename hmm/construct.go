package hmm

import (
	"github.com/theme-lifecycle/themewave/corpus"
	"github.com/theme-lifecycle/themewave/matrix"
)

// FromThemes builds an HMM whose B matrix places the background at row 0
// and the fitted themes at rows 1..K (spec §4.2/§4.6). π and A are given
// a "background + self-loop" initialization (spec §4.4, "Sparsity
// optimization"): a theme state mostly stays in itself or returns to the
// background, a reasonable prior for theme life-cycles. The background
// row is uniform over all states, so isBackgroundSelfLoop reports false
// for this A and Baum-Welch's sparse fast path is not taken. Baum-Welch
// subsequently learns π and A from data; B stays fixed.
func FromThemes(bg corpus.BackgroundModel, themes []corpus.Theme, vocabSize int) (*HMM, error) {
	if vocabSize <= 0 || len(themes) == 0 {
		return nil, ErrInvalidConfiguration
	}

	n := len(themes) + 1
	b, err := matrix.NewZeros(n, vocabSize)
	if err != nil {
		return nil, err
	}

	const floor = 1e-12
	for w := 0; w < vocabSize; w++ {
		if err := b.Set(0, w, bg.Prob(w, floor)); err != nil {
			return nil, err
		}
	}

	for j, th := range themes {
		row := j + 1
		for w := 0; w < vocabSize; w++ {
			if p, ok := th.WordProbabilities[w]; ok {
				if err := b.Set(row, w, p); err != nil {
					return nil, err
				}
			}
		}
	}

	normalized, _, err := matrix.NormalizeRowsL1(b)
	if err != nil {
		return nil, err
	}
	clipped, err := matrix.Clip(normalized, 0, 1)
	if err != nil {
		return nil, err
	}
	b = clipped.(*matrix.Dense)

	pi := make([]float64, n)
	for i := range pi {
		pi[i] = 1.0 / float64(n)
	}

	a, err := matrix.NewZeros(n, n)
	if err != nil {
		return nil, err
	}
	const selfLoop = 0.9
	for i := 0; i < n; i++ {
		if i == 0 {
			// Background transitions uniformly to every theme (and to
			// itself), giving Baum-Welch an unbiased starting point for
			// which themes follow the background.
			for j := 0; j < n; j++ {
				if err := a.Set(0, j, 1.0/float64(n)); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := a.Set(i, i, selfLoop); err != nil {
			return nil, err
		}
		if err := a.Set(i, 0, 1-selfLoop); err != nil {
			return nil, err
		}
	}

	return New(pi, a, b)
}

// isBackgroundSelfLoop reports whether a has the sparse "background +
// self-loop" structure from spec §4.4: A[i][j] == 0 unless j==0 or j==i.
// Baum-Welch's inner loops use this to skip the other indices when true.
func isBackgroundSelfLoop(a *matrix.Dense) bool {
	n := a.Rows()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j == 0 || j == i {
				continue
			}
			v, err := a.At(i, j)
			if err != nil || v != 0 {
				return false
			}
		}
	}
	return true
}
