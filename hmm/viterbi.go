package hmm

import (
	"math"
)

// negInf stands in for log(0) in the Viterbi DP tables.
const negInf = math.MaxFloat64 * -1

// Viterbi decodes the most likely state sequence for obs, choosing the
// block-parallel reformulation when the observation length warrants it
// and the sequential log-space DP otherwise, grounded on
// other_examples/7503d589_wyfcoding-ecommerce__pkg-algorithm-hmm.go.go's
// Viterbi (spec §4.5).
func Viterbi(h *HMM, obs ObservationSequence, cfg DecodeConfig) (DecodeResult, error) {
	cfg = cfg.WithDefaults()
	if h == nil || len(obs) == 0 {
		return DecodeResult{}, ErrInvalidConfiguration
	}

	blocks := blocksOf(obs, cfg.BlockSize)
	if len(blocks) <= 1 {
		return viterbiSequential(h, obs)
	}

	return viterbiBlockParallel(h, obs, blocks, cfg)
}

// logAt takes the natural log of a matrix entry, returning negInf for
// zero or invalid entries instead of propagating -Inf arithmetic through
// every intermediate (spec §4.5, "log space throughout").
func logAt(m interface{ At(int, int) (float64, error) }, i, j int) float64 {
	v, err := m.At(i, j)
	if err != nil || v <= 0 {
		return negInf
	}
	return math.Log(v)
}

// viterbiSequential is the single-pass log-space DP with back-pointer
// traceback: delta_t(i) = max_j [delta_{t-1}(j) + log A[j][i]] + log B[i][o_t].
func viterbiSequential(h *HMM, obs ObservationSequence) (DecodeResult, error) {
	n := h.N
	t := len(obs)

	delta := make([][]float64, t)
	psi := make([][]int, t)
	for tt := range delta {
		delta[tt] = make([]float64, n)
		psi[tt] = make([]int, n)
	}

	for i := 0; i < n; i++ {
		bi, err := h.B.At(i, obs[0])
		if err != nil {
			return DecodeResult{}, err
		}
		pi := h.Pi[i]
		if pi <= 0 || bi <= 0 {
			delta[0][i] = negInf
			continue
		}
		delta[0][i] = math.Log(pi) + math.Log(bi)
	}

	for tt := 1; tt < t; tt++ {
		for i := 0; i < n; i++ {
			bi, err := h.B.At(i, obs[tt])
			if err != nil {
				return DecodeResult{}, err
			}
			logBi := negInf
			if bi > 0 {
				logBi = math.Log(bi)
			}

			best := negInf
			bestJ := 0
			for j := 0; j < n; j++ {
				aji := logAt(h.A, j, i)
				if aji == negInf || delta[tt-1][j] == negInf {
					continue
				}
				cand := delta[tt-1][j] + aji
				if cand > best {
					best = cand
					bestJ = j
				}
			}
			if best == negInf {
				delta[tt][i] = negInf
				psi[tt][i] = bestJ
				continue
			}
			delta[tt][i] = best + logBi
			psi[tt][i] = bestJ
		}
	}

	return traceback(delta, psi, t)
}

// traceback picks the best final state, then walks psi backward to fill
// in a state sequence of the given length. Used by the single-pass
// sequential decoder, where delta/psi already span the whole sequence so
// the global argmax and the local argmax coincide.
func traceback(delta [][]float64, psi [][]int, length int) (DecodeResult, error) {
	n := len(delta[0])
	best := negInf
	bestState := 0
	for i := 0; i < n; i++ {
		if delta[length-1][i] > best {
			best = delta[length-1][i]
			bestState = i
		}
	}

	states := tracebackFrom(delta, psi, bestState)
	return DecodeResult{States: states, LogProbability: best}, nil
}

// tracebackFrom walks psi backward from an already-known final state,
// filling in every earlier position.
func tracebackFrom(delta [][]float64, psi [][]int, finalState int) []int {
	length := len(delta)
	states := make([]int, length)
	states[length-1] = finalState
	cur := finalState
	for bt := length - 1; bt > 0; bt-- {
		cur = psi[bt][cur]
		states[bt-1] = cur
	}
	return states
}

// viterbiBlockParallel implements spec §4.5's block-parallel Viterbi: a
// sequential up-phase that carries only each block's boundary delta
// vector forward, an embarrassingly parallel phase that recomputes each
// block's full delta/psi tables from its now-known entry vector, and
// finally the driver identifying the global argmax at T-1 and walking
// back-pointers block by block in reverse (spec §4.5, "Down-phase").
//
// A block's own delta/psi table only determines states *within* that
// block once its exit state (the state the optimal global path is in at
// the block's last position) is known; that exit state is not
// necessarily the block's own local argmax; it is the predecessor the
// *next* block's traceback entered from. So blocks cannot each
// independently traceback from their own local argmax (that only holds
// for the last block, where the global argmax and the local argmax are
// the same row) — the exit states must be resolved in reverse, one block
// at a time, each using the next block's psi[0] at the already-resolved
// entry state.
func viterbiBlockParallel(h *HMM, obs ObservationSequence, blocks []ScanBlock, cfg DecodeConfig) (DecodeResult, error) {
	n := h.N

	// Up-phase: sequentially carry the entry delta vector from block to
	// block, computing only the final delta row of each block (spec
	// §4.5, "Up-phase").
	boundaryDelta := make([][]float64, len(blocks)+1)
	boundaryDelta[0] = make([]float64, n)
	for i := 0; i < n; i++ {
		boundaryDelta[0][i] = math.NaN() // sentinel: block 0 uses Pi instead
	}

	for bi, blk := range blocks {
		entry := boundaryDelta[bi]
		localDelta, _, err := runBlockDP(h, blk, entry, bi == 0)
		if err != nil {
			return DecodeResult{}, err
		}
		boundaryDelta[bi+1] = localDelta[len(localDelta)-1]
	}

	// Down-phase, parallel part: every block recomputes its own full
	// delta/psi tables from its now-known entry vector. No traceback
	// happens here yet — only the DP tables, which is the part that
	// actually benefits from running across blocks concurrently.
	localDeltas := make([][][]float64, len(blocks))
	localPsis := make([][][]int, len(blocks))
	tasks := make([]func() error, len(blocks))
	for bi, blk := range blocks {
		bi, blk := bi, blk
		tasks[bi] = func() error {
			localDelta, localPsi, err := runBlockDP(h, blk, boundaryDelta[bi], bi == 0)
			if err != nil {
				return err
			}
			localDeltas[bi] = localDelta
			localPsis[bi] = localPsi
			return nil
		}
	}
	errs := cfg.Executor.Run(tasks)
	for _, e := range errs {
		if e != nil {
			return DecodeResult{}, e
		}
	}

	// Down-phase, sequential part: the driver identifies the global
	// argmax at the last block's last position, then walks back-pointers
	// block by block in reverse, carrying each block's resolved entry
	// state (psi[0] at its already-resolved exit state) as the next
	// block back's exit state. This is O(T) index lookups, not another
	// O(T*N) DP pass, so doing it sequentially costs nothing next to the
	// parallel table build above.
	last := len(blocks) - 1
	lastDelta := localDeltas[last]
	lastRow := lastDelta[len(lastDelta)-1]
	best := negInf
	exitState := 0
	for i, v := range lastRow {
		if v > best {
			best = v
			exitState = i
		}
	}

	states := make([]int, len(obs))
	for bi := last; bi >= 0; bi-- {
		blk := blocks[bi]
		blockStates := tracebackFrom(localDeltas[bi], localPsis[bi], exitState)
		copy(states[blk.Start:blk.Start+len(blockStates)], blockStates)
		exitState = localPsis[bi][0][blockStates[0]]
	}

	return DecodeResult{States: states, LogProbability: best}, nil
}

// runBlockDP computes delta/psi for one block given its entry delta
// vector (the previous block's final row, or NaN-sentineled for the
// first block, which seeds from Pi instead).
func runBlockDP(h *HMM, blk ScanBlock, entry []float64, first bool) (delta [][]float64, psi [][]int, err error) {
	n := h.N
	t := len(blk.Obs)
	delta = make([][]float64, t)
	psi = make([][]int, t)
	for tt := range delta {
		delta[tt] = make([]float64, n)
		psi[tt] = make([]int, n)
	}

	for i := 0; i < n; i++ {
		bi, berr := h.B.At(i, blk.Obs[0])
		if berr != nil {
			return nil, nil, berr
		}
		logBi := negInf
		if bi > 0 {
			logBi = math.Log(bi)
		}

		if first {
			pi := h.Pi[i]
			if pi <= 0 {
				delta[0][i] = negInf
				continue
			}
			delta[0][i] = math.Log(pi) + logBi
			continue
		}

		best := negInf
		bestJ := 0
		for j := 0; j < n; j++ {
			if math.IsNaN(entry[j]) || entry[j] == negInf {
				continue
			}
			aji := logAt(h.A, j, i)
			if aji == negInf {
				continue
			}
			cand := entry[j] + aji
			if cand > best {
				best = cand
				bestJ = j
			}
		}
		if best == negInf {
			delta[0][i] = negInf
			psi[0][i] = bestJ
			continue
		}
		delta[0][i] = best + logBi
		psi[0][i] = bestJ
	}

	for tt := 1; tt < t; tt++ {
		for i := 0; i < n; i++ {
			bi, berr := h.B.At(i, blk.Obs[tt])
			if berr != nil {
				return nil, nil, berr
			}
			logBi := negInf
			if bi > 0 {
				logBi = math.Log(bi)
			}

			best := negInf
			bestJ := 0
			for j := 0; j < n; j++ {
				if delta[tt-1][j] == negInf {
					continue
				}
				aji := logAt(h.A, j, i)
				if aji == negInf {
					continue
				}
				cand := delta[tt-1][j] + aji
				if cand > best {
					best = cand
					bestJ = j
				}
			}
			if best == negInf {
				delta[tt][i] = negInf
				psi[tt][i] = bestJ
				continue
			}
			delta[tt][i] = best + logBi
			psi[tt][i] = bestJ
		}
	}

	return delta, psi, nil
}
