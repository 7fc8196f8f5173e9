package em

import (
	"math"
	"math/rand"

	"github.com/theme-lifecycle/themewave/corpus"
)

// maxConsecutiveDegenerate is the "maximum of 3 consecutive such events"
// threshold from spec §7 before a fit gives up with ErrDiverged.
const maxConsecutiveDegenerate = 3

// Fit runs expectation-maximization on input, returning the same EmInput
// with Themes and Mixing populated and Iterations recorded (spec §4.1).
// It does not perform restarts or theme filtering — those are the
// driver's (restarts) and FilterThemes's (filtering) responsibilities,
// kept out of this function per §4.6's "no business logic beyond
// selection and shaping".
func Fit(input corpus.EmInput, cfg Config) (corpus.EmInput, Diagnostics, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return corpus.EmInput{}, Diagnostics{}, err
	}
	if len(input.Documents) == 0 {
		return corpus.EmInput{}, Diagnostics{}, ErrEmptyInput
	}

	docs := input.Documents
	vocab := vocabularyOf(docs)
	rng := rngFromSeed(cfg.RNGSeed + uint64(input.RunID))

	theta := initThemes(vocab, cfg.K, rng)
	pi := initMixing(len(docs), cfg.K)

	var (
		prevL         float64
		diag          Diagnostics
		consecutiveNd int
	)
	prevL = math.Inf(-1)

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		newTheta, newPi, degenerate := emStep(docs, input.Background, theta, pi, cfg)
		if degenerate {
			consecutiveNd++
			if consecutiveNd >= maxConsecutiveDegenerate {
				return corpus.EmInput{}, Diagnostics{}, ErrDiverged
			}
			// Previous parameters retained; this iteration does not
			// advance theta/pi/Iterations/L (spec §7, "Propagation").
			continue
		}
		consecutiveNd = 0
		theta, pi = newTheta, newPi

		L := logLikelihood(docs, input.Background, theta, pi, cfg)
		diag.Iterations = iter
		diag.LogLikelihood = L

		if math.Abs(L-prevL) < cfg.ConvergenceEps {
			diag.Converged = true
			prevL = L
			break
		}
		prevL = L
	}

	themes := make([]corpus.Theme, cfg.K)
	for j := range themes {
		wp := make(map[int]float64, len(theta[j]))
		for w, p := range theta[j] {
			wp[w] = p
		}
		themes[j] = corpus.Theme{WordProbabilities: wp}
	}

	out := input
	out.Themes = themes
	out.Mixing = pi
	out.Iterations = diag.Iterations

	annotateAveragePi(out.Themes, pi)

	return out, diag, nil
}

// vocabularyOf returns the sorted-by-first-seen set of word ids appearing
// across docs: the themes' word domain must be a superset of every
// document's words (spec §3 invariant), and since construction is
// document-driven, the union of document words is exactly that domain.
func vocabularyOf(docs []corpus.Document) []int {
	seen := make(map[int]bool)
	var vocab []int
	for _, d := range docs {
		for w := range d.WordCounts {
			if !seen[w] {
				seen[w] = true
				vocab = append(vocab, w)
			}
		}
	}
	return vocab
}

// initThemes draws the random positive-normalized initialization from
// spec §4.1, "Random init: p(w|θ_j) ← random positive normalized".
func initThemes(vocab []int, k int, rng *rand.Rand) []map[int]float64 {
	themes := make([]map[int]float64, k)
	for j := 0; j < k; j++ {
		probs := randomPositiveNormalized(rng, len(vocab))
		m := make(map[int]float64, len(vocab))
		for i, w := range vocab {
			m[w] = probs[i]
		}
		themes[j] = m
	}
	return themes
}

// initMixing returns the uniform π_{d,j} ← 1/K initialization from spec §4.1.
func initMixing(numDocs, k int) [][]float64 {
	pi := make([][]float64, numDocs)
	uniform := 1.0 / float64(k)
	for d := range pi {
		row := make([]float64, k)
		for j := range row {
			row[j] = uniform
		}
		pi[d] = row
	}
	return pi
}

// emStep runs one E-then-M pass and returns the re-estimated theta/pi.
// degenerate is true if some theme's M-step word-normalization mass was
// zero across every document (spec §7, NumericalDegeneracy); in that
// case newTheta/newPi are not meaningful and must be discarded by the
// caller.
func emStep(docs []corpus.Document, bg corpus.BackgroundModel, theta []map[int]float64, pi [][]float64, cfg Config) (newTheta []map[int]float64, newPi [][]float64, degenerate bool) {
	k := cfg.K
	lambda := cfg.LambdaBackground
	eps := cfg.Epsilon

	// M-step accumulators.
	piNumerator := make([][]float64, len(docs))
	themeNumerator := make([]map[int]float64, k)
	themeMass := make([]float64, k)
	for j := 0; j < k; j++ {
		themeNumerator[j] = make(map[int]float64)
	}

	for d, doc := range docs {
		row := make([]float64, k)
		for w, c := range doc.WordCounts {
			sd := 0.0
			for j := 0; j < k; j++ {
				sd += pi[d][j] * theta[j][w]
			}

			pB := bg.Prob(w, eps)
			denom := lambda*pB + (1-lambda)*sd
			if denom <= 0 {
				denom = eps
			}
			pzb := lambda * pB / denom

			sdForSplit := sd
			if sdForSplit <= 0 {
				sdForSplit = eps
			}

			weight := float64(c) * (1 - pzb)
			for j := 0; j < k; j++ {
				pzj := pi[d][j] * theta[j][w] / sdForSplit
				contribution := weight * pzj
				row[j] += contribution
				themeNumerator[j][w] += contribution
				themeMass[j] += contribution
			}
		}
		piNumerator[d] = row
	}

	for j := 0; j < k; j++ {
		if themeMass[j] <= 0 {
			return nil, nil, true
		}
	}

	newPi = make([][]float64, len(docs))
	for d, row := range piNumerator {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if sum <= 0 {
			sum = eps
		}
		normalized := make([]float64, k)
		for j, v := range row {
			normalized[j] = v / sum
		}
		newPi[d] = normalized
	}

	newTheta = make([]map[int]float64, k)
	for j := 0; j < k; j++ {
		m := make(map[int]float64, len(themeNumerator[j]))
		mass := themeMass[j]
		for w, v := range themeNumerator[j] {
			m[w] = v / mass
		}
		newTheta[j] = m
	}

	return newTheta, newPi, false
}

// logLikelihood computes L per spec §4.1:
//
//	L = (1/|D|) Σ_d (1/|W_d|) Σ_w c(w,d)·log(λ_B·p_B(w) + (1−λ_B)·S_d(w))
func logLikelihood(docs []corpus.Document, bg corpus.BackgroundModel, theta []map[int]float64, pi [][]float64, cfg Config) float64 {
	k := cfg.K
	lambda := cfg.LambdaBackground
	eps := cfg.Epsilon

	var total float64
	var nonEmptyDocs int
	for d, doc := range docs {
		if doc.DistinctWords() == 0 {
			continue // Empty document -> skipped (spec §4.1, "Edge cases").
		}
		nonEmptyDocs++

		var docSum float64
		for w, c := range doc.WordCounts {
			sd := 0.0
			for j := 0; j < k; j++ {
				sd += pi[d][j] * theta[j][w]
			}
			pB := bg.Prob(w, eps)
			inner := lambda*pB + (1-lambda)*sd
			if inner <= 0 {
				inner = eps
			}
			docSum += float64(c) * math.Log(inner)
		}
		total += docSum / float64(doc.DistinctWords())
	}

	if nonEmptyDocs == 0 {
		return 0
	}

	return total / float64(nonEmptyDocs)
}

// annotateAveragePi fills each theme's AveragePi with the mean of π_{d,j}
// over all documents, used by FilterThemes (spec §4.1, "Theme filtering").
func annotateAveragePi(themes []corpus.Theme, pi [][]float64) {
	if len(pi) == 0 {
		return
	}
	for j := range themes {
		var sum float64
		for d := range pi {
			sum += pi[d][j]
		}
		themes[j].AveragePi = sum / float64(len(pi))
	}
}
