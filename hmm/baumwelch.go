package hmm

import (
	"context"
	"errors"
	"math"

	"github.com/theme-lifecycle/themewave/matrix"
	"github.com/theme-lifecycle/themewave/scan"
)

// epsilonFloor is the denominator floor substituted for numeric zeros
// during re-estimation (spec §4.1/§7's "Edge cases"/"NumericalDegeneracy"
// pattern, reused here for Baum-Welch's own divisions).
const epsilonFloor = 1e-12

// maxConsecutiveDegenerate mirrors em's threshold: 3 consecutive
// NumericalDegeneracy events abort the fit with ErrDiverged (spec §7).
const maxConsecutiveDegenerate = 3

// BaumWelch trains π and A against the fixed emission matrix B (spec
// §4.4). It runs the block-parallel reformulation when T*N^2 is at least
// cfg.SequentialThreshold and cfg.ForceSequential is false; otherwise it
// runs the sequential scaled forward-backward fallback, whose results
// must agree with the block version to 1e-9 relative error (spec §4.4,
// "Sequential fallback").
//
// Convergence is checked after every iteration: ‖π*−π‖₁ < ε_π AND
// ‖A*−A‖₁ < ε_A (spec §4.4, "Convergence" — Open Question (c): this
// check is active, not the source's commented-out variant). π, A are
// double-buffered: an iteration's new values are only swapped in on
// success, so mid-iteration cancellation or a NumericalDegeneracy abort
// leaves the model unchanged (spec §5, "Cancellation & timeouts"). A
// ctx carrying a deadline (context.WithTimeout/WithDeadline) surfaces as
// ErrTimedOut once it elapses; any other cancellation surfaces as
// ErrCancelled.
func BaumWelch(h *HMM, obs ObservationSequence, cfg TrainConfig) (TrainResult, error) {
	cfg = cfg.WithDefaults()
	if h == nil || len(obs) == 0 {
		return TrainResult{}, ErrInvalidConfiguration
	}

	t := int64(len(obs))
	n := int64(h.N)
	useSequential := cfg.ForceSequential || t*n*n < cfg.SequentialThreshold

	pi := append([]float64(nil), h.Pi...)
	a := h.A.Clone().(*matrix.Dense)

	var (
		result        TrainResult
		consecutiveNd int
	)

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		select {
		case <-cfg.Ctx.Done():
			if errors.Is(cfg.Ctx.Err(), context.DeadlineExceeded) {
				return result, ErrTimedOut
			}
			return result, ErrCancelled
		default:
		}

		var (
			newPi       []float64
			newA        *matrix.Dense
			ll          float64
			degenerate  bool
			stepErr     error
		)
		if useSequential {
			newPi, newA, ll, degenerate, stepErr = baumWelchSequentialIteration(h, pi, a, obs)
		} else {
			newPi, newA, ll, degenerate, stepErr = baumWelchBlockIteration(h, pi, a, obs, cfg)
		}
		if stepErr != nil {
			return result, stepErr
		}
		if degenerate {
			consecutiveNd++
			if consecutiveNd >= maxConsecutiveDegenerate {
				return result, ErrDiverged
			}
			continue
		}
		consecutiveNd = 0

		piDelta := l1DistVec(pi, newPi)
		aDelta := l1DistMat(a, newA)

		pi, a = newPi, newA
		result = TrainResult{Pi: pi, A: a, Iterations: iter, LogLikelihood: ll}

		if piDelta < cfg.PiThreshold && aDelta < cfg.AThreshold {
			result.Converged = true
			break
		}
	}

	return result, nil
}

// l1DistVec returns Σ_i |a_i - b_i|.
func l1DistVec(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		s += d
	}
	return s
}

// l1DistMat returns Σ_ij |A_ij - B_ij| via matrix.Sub + matrix.L1Norm.
func l1DistMat(a, b *matrix.Dense) float64 {
	diff, err := matrix.Sub(a, b)
	if err != nil {
		return math.Inf(1)
	}
	norm, err := matrix.L1Norm(diff)
	if err != nil {
		return math.Inf(1)
	}
	return norm
}

// ---------- Sequential fallback (scaled forward-backward) ----------

// baumWelchSequentialIteration runs one classical scaled forward-backward
// pass, grounded on
// other_examples/0f4dde1b_mcastilho-go-summer__src-hmm-hmm_learn.go.go's
// Forward/Backward/UpdateModel, adapted from supervised counting to
// EM-style re-estimation and from observations of (position,length)
// pairs to a single dense word-id sequence against the HMM's π, A, B.
func baumWelchSequentialIteration(h *HMM, pi []float64, a *matrix.Dense, obs ObservationSequence) (newPi []float64, newA *matrix.Dense, logLikelihood float64, degenerate bool, err error) {
	n := h.N
	t := len(obs)
	sparse := isBackgroundSelfLoop(a)

	alpha := make([][]float64, t)
	c := make([]float64, t)
	for i := range alpha {
		alpha[i] = make([]float64, n)
	}

	// Forward pass with per-step scaling (spec GLOSSARY, "Scaling
	// constant c_t").
	for i := 0; i < n; i++ {
		bi0, berr := h.B.At(i, obs[0])
		if berr != nil {
			return nil, nil, 0, false, berr
		}
		alpha[0][i] = pi[i] * bi0
		c[0] += alpha[0][i]
	}
	if c[0] <= 0 {
		c[0] = epsilonFloor
	}
	for i := 0; i < n; i++ {
		alpha[0][i] /= c[0]
	}

	for tt := 1; tt < t; tt++ {
		for i := 0; i < n; i++ {
			bi, berr := h.B.At(i, obs[tt])
			if berr != nil {
				return nil, nil, 0, false, berr
			}
			var sum float64
			for j := 0; j < n; j++ {
				sum += alpha[tt-1][j] * mustAt(a, j, i)
			}
			alpha[tt][i] = sum * bi
			c[tt] += alpha[tt][i]
		}
		if c[tt] <= 0 {
			c[tt] = epsilonFloor
		}
		for i := 0; i < n; i++ {
			alpha[tt][i] /= c[tt]
		}
	}

	var ll float64
	for _, ct := range c {
		ll += math.Log(ct)
	}

	// Backward pass reusing the forward pass's scaling factors.
	beta := make([][]float64, t)
	for i := range beta {
		beta[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		beta[t-1][i] = 1.0 / c[t-1]
	}
	for tt := t - 2; tt >= 0; tt-- {
		for i := 0; i < n; i++ {
			var sum float64
			for j := 0; j < n; j++ {
				bj, _ := h.B.At(j, obs[tt+1])
				sum += mustAt(a, i, j) * bj * beta[tt+1][j]
			}
			beta[tt][i] = sum / c[tt]
		}
	}

	// Gamma and xi accumulation for re-estimation.
	gammaSum := make([]float64, n)
	xiNumerator, err2 := matrix.ZerosLike(a)
	if err2 != nil {
		return nil, nil, 0, false, err2
	}

	for tt := 0; tt < t-1; tt++ {
		var denom float64
		xiRow := make([][]float64, n)
		for i := 0; i < n; i++ {
			xiRow[i] = make([]float64, n)
			for j := 0; j < n; j++ {
				if sparse && j != 0 && j != i {
					continue
				}
				bj, _ := h.B.At(j, obs[tt+1])
				v := alpha[tt][i] * mustAt(a, i, j) * bj * beta[tt+1][j]
				xiRow[i][j] = v
				denom += v
			}
		}
		if denom <= 0 {
			denom = epsilonFloor
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if sparse && j != 0 && j != i {
					continue
				}
				norm := xiRow[i][j] / denom
				gammaSum[i] += norm
				cur, _ := xiNumerator.At(i, j)
				_ = xiNumerator.Set(i, j, cur+norm)
			}
		}
	}

	newA, err = matrix.ZerosLike(a)
	if err != nil {
		return nil, nil, 0, false, err
	}
	for i := 0; i < n; i++ {
		if gammaSum[i] <= 0 {
			return nil, nil, 0, true, nil
		}
		for j := 0; j < n; j++ {
			if sparse && j != 0 && j != i {
				continue
			}
			num, _ := xiNumerator.At(i, j)
			_ = newA.Set(i, j, num/gammaSum[i])
		}
	}
	if normalized, _, nerr := matrix.NormalizeRowsL1(newA); nerr == nil {
		newA = normalized.(*matrix.Dense)
	}

	newPi = make([]float64, n)
	var piSum float64
	for i := 0; i < n; i++ {
		v := alpha[0][i] * beta[0][i]
		newPi[i] = v
		piSum += v
	}
	if piSum <= 0 {
		return nil, nil, 0, true, nil
	}
	for i := range newPi {
		newPi[i] /= piSum
	}

	return newPi, newA, ll, false, nil
}

// mustAt reads a.At(i,j), treating an out-of-range error as 0 — safe
// here because every caller already validated shapes via isBackgroundSelfLoop
// or HMM construction.
func mustAt(a *matrix.Dense, i, j int) float64 {
	v, err := a.At(i, j)
	if err != nil {
		return 0
	}
	return v
}

// ---------- Block-parallel reformulation ----------

// scaledMat is an associative scan element representing the real matrix
// value M*exp(LogScale): M is kept L1-normalized (non-negative entries
// summing to 1) after every combination, and LogScale accumulates the
// log of each combination's renormalization factor. Because scalar
// multiplication commutes with matrix multiplication, combining two
// scaledMat values and separately tracking their scale is associative
// regardless of how the chain is split into blocks — this is the
// generic-scan-engine realization of spec §4.3's "each local product is
// L1-renormalized and a per-step normalization constant is retained
// separately (equivalent to classical alpha/beta scaling)".
type scaledMat struct {
	M        *matrix.Dense
	LogScale float64
}

// combine multiplies l*r in the given matrix order, renormalizes the
// product to unit L1 norm, and folds the normalization factor into the
// accumulated LogScale.
func combine(l, r *matrix.Dense, logA, logB float64) scaledMat {
	dst, _ := matrix.ZerosLike(l)
	_ = matrix.MulInto(dst, l, r)
	norm, _ := matrix.L1Norm(dst)
	if norm <= 0 {
		norm = epsilonFloor
	}
	_ = matrix.ScaleInPlace(dst, 1/norm)
	return scaledMat{M: dst, LogScale: logA + logB + math.Log(norm)}
}

// alphaOp implements the left-scan operator for the forward recurrence:
// cumulative product order TA_t · TA_{t-1} · ... · TA_0 (spec §4.4).
func alphaOp(a, b scaledMat) scaledMat {
	return combine(b.M, a.M, a.LogScale, b.LogScale)
}

// betaOp implements the right-scan operator for the backward recurrence:
// cumulative product order TB_t · TB_{t+1} · ... · TB_{T-2}.
func betaOp(a, b scaledMat) scaledMat {
	return combine(a.M, b.M, a.LogScale, b.LogScale)
}

func identityScaled(ref *matrix.Dense) scaledMat {
	id, _ := matrix.IdentityLike(ref)
	return scaledMat{M: id, LogScale: 0}
}

// buildTA builds TA_t per spec §4.4: a diagonal matrix from π at t=0,
// otherwise TA_t(i,j) = A[j][i]·B[i][o_t].
func buildTA(h *HMM, a *matrix.Dense, pi []float64, obs ObservationSequence, t int) (*matrix.Dense, error) {
	n := h.N
	ta, err := matrix.ZerosLike(a)
	if err != nil {
		return nil, err
	}
	if t == 0 {
		for i := 0; i < n; i++ {
			bi, err := h.B.At(i, obs[0])
			if err != nil {
				return nil, err
			}
			if err := ta.Set(i, i, pi[i]*bi); err != nil {
				return nil, err
			}
		}
		return ta, nil
	}

	for i := 0; i < n; i++ {
		bi, err := h.B.At(i, obs[t])
		if err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			aji := mustAt(a, j, i)
			if aji == 0 {
				continue
			}
			if err := ta.Set(i, j, aji*bi); err != nil {
				return nil, err
			}
		}
	}

	return ta, nil
}

// buildTB builds TB_t per spec §4.4: TB_t(i,j) = A[i][j]·B[j][o_{t+1}]·c_t,
// where c_t is the forward pass's per-step scaling factor at t.
func buildTB(h *HMM, a *matrix.Dense, obs ObservationSequence, t int, cT float64) (*matrix.Dense, error) {
	n := h.N
	tb, err := matrix.ZerosLike(a)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aij := mustAt(a, i, j)
			if aij == 0 {
				continue
			}
			bj, err := h.B.At(j, obs[t+1])
			if err != nil {
				return nil, err
			}
			if err := tb.Set(i, j, aij*bj*cT); err != nil {
				return nil, err
			}
		}
	}

	return tb, nil
}

// baumWelchBlockIteration implements spec §4.4's 9-step per-iteration
// algorithm using scan.ScanLeft/ScanRight over scaledMat chains, with the
// sparsity optimization (spec §4.4, "Sparsity optimization") gating the
// ξ accumulation loops whenever A has the background+self-loop structure
// (buildTA/buildTB skip zero entries of A whether or not it does).
func baumWelchBlockIteration(h *HMM, pi []float64, a *matrix.Dense, obs ObservationSequence, cfg TrainConfig) (newPi []float64, newA *matrix.Dense, logLikelihood float64, degenerate bool, err error) {
	n := h.N
	t := len(obs)

	// Steps 1-3: build TA_t, left-scan (local pass + reduce + finalize),
	// giving cumulative products per block, already sorted by block-id
	// since scan.ScanLeft writes results into the output slice by index
	// (spec §5, "Ordering": block-id tagging is implicit in slice position).
	taValues := make([]scaledMat, t)
	for tt := 0; tt < t; tt++ {
		ta, buildErr := buildTA(h, a, pi, obs, tt)
		if buildErr != nil {
			return nil, nil, 0, false, buildErr
		}
		taValues[tt] = scaledMat{M: ta, LogScale: 0}
	}
	alphaCum := scan.ScanLeft(taValues, alphaOp, identityScaled(a), cfg.BlockSize, cfg.Executor)

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}

	alphaHat := make([][]float64, t)
	for tt := 0; tt < t; tt++ {
		v, mvErr := matrix.MatVec(alphaCum[tt].M, ones)
		if mvErr != nil {
			return nil, nil, 0, false, mvErr
		}
		alphaHat[tt] = v
	}

	// Step 4: per-step scaling constants as the incremental LogScale
	// between consecutive cumulative products.
	cT := make([]float64, t)
	prevLog := 0.0
	for tt := 0; tt < t; tt++ {
		cT[tt] = math.Exp(alphaCum[tt].LogScale - prevLog)
		prevLog = alphaCum[tt].LogScale
	}
	logLikelihood = alphaCum[t-1].LogScale

	// Steps 5-7: build TB_t for t=0..T-2 with c_t baked in, right-scan.
	var betaHat [][]float64
	if t > 1 {
		tbValues := make([]scaledMat, t-1)
		for tt := 0; tt < t-1; tt++ {
			tb, buildErr := buildTB(h, a, obs, tt, cT[tt])
			if buildErr != nil {
				return nil, nil, 0, false, buildErr
			}
			tbValues[tt] = scaledMat{M: tb, LogScale: 0}
		}
		betaCum := scan.ScanRight(tbValues, betaOp, identityScaled(a), cfg.BlockSize, cfg.Executor)

		betaHat = make([][]float64, t)
		for tt := 0; tt < t-1; tt++ {
			v, mvErr := matrix.MatVec(betaCum[tt].M, ones)
			if mvErr != nil {
				return nil, nil, 0, false, mvErr
			}
			betaHat[tt] = v
		}
	} else {
		betaHat = make([][]float64, t)
	}
	betaHat[t-1] = append([]float64(nil), ones...)

	// Step 8: per-block ξ contributions, summed by the coordinator (step
	// 9). Each block computes its own xi sums independently (the last
	// position per block uses the first β of the next block, already
	// available here since betaHat is materialized in full before this
	// stage runs).
	blocks := blocksOf(obs, cfg.BlockSize)
	xiSums := make([]*matrix.Dense, len(blocks))
	gammaSums := make([][]float64, len(blocks))
	sparse := isBackgroundSelfLoop(a)

	tasks := make([]func() error, len(blocks))
	for bi, blk := range blocks {
		bi, blk := bi, blk
		tasks[bi] = func() error {
			xi, xErr := matrix.ZerosLike(a)
			if xErr != nil {
				return xErr
			}
			gamma := make([]float64, n)

			end := blk.End
			if end > t-1 {
				end = t - 1 // ξ is only defined for t in [0, T-2]
			}
			for tt := blk.Start; tt < end; tt++ {
				var denom float64
				row := make([][]float64, n)
				for i := 0; i < n; i++ {
					row[i] = make([]float64, n)
					for j := 0; j < n; j++ {
						if sparse && j != 0 && j != i {
							continue
						}
						bj, bErr := h.B.At(j, obs[tt+1])
						if bErr != nil {
							return bErr
						}
						v := alphaHat[tt][i] * mustAt(a, i, j) * bj * betaHat[tt+1][j]
						row[i][j] = v
						denom += v
					}
				}
				if denom <= 0 {
					denom = epsilonFloor
				}
				for i := 0; i < n; i++ {
					for j := 0; j < n; j++ {
						if sparse && j != 0 && j != i {
							continue
						}
						norm := row[i][j] / denom
						gamma[i] += norm
						cur, _ := xi.At(i, j)
						_ = xi.Set(i, j, cur+norm)
					}
				}
			}

			xiSums[bi] = xi
			gammaSums[bi] = gamma
			return nil
		}
	}
	errs := cfg.Executor.Run(tasks)
	for _, e := range errs {
		if e != nil {
			return nil, nil, 0, false, e
		}
	}

	// Step 9: driver sums per-block ξ (sorted by block-id — blocks is
	// already in ascending id order since blocksOf builds it that way)
	// and row-normalizes to form A*.
	totalXi, err := matrix.ZerosLike(a)
	if err != nil {
		return nil, nil, 0, false, err
	}
	totalGamma := make([]float64, n)
	for bi := range blocks {
		for i := 0; i < n; i++ {
			totalGamma[i] += gammaSums[bi][i]
			for j := 0; j < n; j++ {
				if sparse && j != 0 && j != i {
					continue
				}
				cur, _ := totalXi.At(i, j)
				v, _ := xiSums[bi].At(i, j)
				_ = totalXi.Set(i, j, cur+v)
			}
		}
	}

	newA, err = matrix.ZerosLike(a)
	if err != nil {
		return nil, nil, 0, false, err
	}
	for i := 0; i < n; i++ {
		if totalGamma[i] <= 0 {
			return nil, nil, 0, true, nil
		}
		for j := 0; j < n; j++ {
			if sparse && j != 0 && j != i {
				continue
			}
			num, _ := totalXi.At(i, j)
			_ = newA.Set(i, j, num/totalGamma[i])
		}
	}
	if normalized, _, nerr := matrix.NormalizeRowsL1(newA); nerr == nil {
		newA = normalized.(*matrix.Dense)
	}

	// π* from the first block's α̂·β̂ (spec §4.4 step 9).
	newPi = make([]float64, n)
	var piSum float64
	for i := 0; i < n; i++ {
		v := alphaHat[0][i] * betaHat[0][i]
		newPi[i] = v
		piSum += v
	}
	if piSum <= 0 {
		return nil, nil, 0, true, nil
	}
	for i := range newPi {
		newPi[i] /= piSum
	}

	return newPi, newA, logLikelihood, false, nil
}
