package hmm

import (
	"context"

	"github.com/theme-lifecycle/themewave/exec"
	"github.com/theme-lifecycle/themewave/matrix"
)

// ObservationSequence is an ordered sequence of word ids; ordering is
// authoritative (spec §3, ObservationSequence row).
type ObservationSequence []int

// HMM holds π, A, B (spec §3/§4.2). State 0 is the background; states
// 1..K correspond to fitted themes. B is held fixed by Baum-Welch in this
// core (theme distributions come from em); only π and A are learned.
type HMM struct {
	// Pi is the length-N initial state distribution.
	Pi []float64

	// A is the N×N row-stochastic transition matrix.
	A *matrix.Dense

	// B is the N×M emission matrix; row 0 is the background distribution,
	// rows 1..K are the fitted themes.
	B *matrix.Dense

	// N is the number of hidden states (1 background + K themes).
	N int

	// M is the number of observable states (vocabulary size).
	M int
}

// New constructs an HMM from explicit π, A, B, validating the invariants
// from spec §3: Σ π_i = 1, row-stochastic A, Σ_j B[i][j] = 1.
func New(pi []float64, a, b *matrix.Dense) (*HMM, error) {
	if a == nil || b == nil || pi == nil {
		return nil, ErrInvalidConfiguration
	}
	n := len(pi)
	if a.Rows() != n || a.Cols() != n {
		return nil, ErrInvalidConfiguration
	}
	if b.Rows() != n {
		return nil, ErrInvalidConfiguration
	}

	if !sumsToOne(pi) {
		return nil, ErrInvalidConfiguration
	}
	aSums, err := matrix.RowSums(a)
	if err != nil {
		return nil, ErrInvalidConfiguration
	}
	if !sumsToOneAll(aSums) {
		return nil, ErrInvalidConfiguration
	}
	bSums, err := matrix.RowSums(b)
	if err != nil {
		return nil, ErrInvalidConfiguration
	}
	if !sumsToOneAll(bSums) {
		return nil, ErrInvalidConfiguration
	}

	return &HMM{Pi: append([]float64(nil), pi...), A: a, B: b, N: n, M: b.Cols()}, nil
}

// sumsToOne checks Σ row == 1 ± 1e-9, the tolerance used throughout spec §8.
func sumsToOne(row []float64) bool {
	var sum float64
	for _, v := range row {
		sum += v
	}
	const tol = 1e-9
	return sum > 1-tol && sum < 1+tol
}

// sumsToOneAll applies sumsToOne's tolerance to a vector of already-summed
// rows (spec §3, "Σ_j A[i][j] = 1 ∀i", "Σ_j B[i][j] = 1 ∀i").
func sumsToOneAll(sums []float64) bool {
	const tol = 1e-9
	for _, s := range sums {
		if !(s > 1-tol && s < 1+tol) {
			return false
		}
	}
	return true
}

// TrainConfig holds the Baum-Welch parameters from spec §6.
type TrainConfig struct {
	// MaxIterations bounds training; default 100.
	MaxIterations int

	// PiThreshold is ε_π, the L1 convergence threshold for π; default 1e-4.
	PiThreshold float64

	// AThreshold is ε_A, the L1 convergence threshold for A; default 1e-4.
	AThreshold float64

	// BlockSize is bwBlockSize, the scan engine's block size; default
	// 1_048_576.
	BlockSize int

	// ForceSequential selects the non-distributed fallback regardless of
	// T*N^2 (forceSequentialBaumWelch).
	ForceSequential bool

	// SequentialThreshold is the T*N^2 cutoff below which the sequential
	// fallback runs automatically; default 1e9 (spec §4.4).
	SequentialThreshold int64

	// Executor schedules block tasks; nil defaults to exec.Sequential{}.
	Executor exec.Executor

	// Ctx allows cooperative cancellation between iterations (spec §5).
	// A deadline set via context.WithTimeout/WithDeadline surfaces as
	// ErrTimedOut once it elapses; any other cancellation surfaces as
	// ErrCancelled.
	Ctx context.Context
}

// WithDefaults fills zero-valued fields with the spec §6 defaults.
func (cfg TrainConfig) WithDefaults() TrainConfig {
	out := cfg
	if out.MaxIterations == 0 {
		out.MaxIterations = 100
	}
	if out.PiThreshold == 0 {
		out.PiThreshold = 1e-4
	}
	if out.AThreshold == 0 {
		out.AThreshold = 1e-4
	}
	if out.BlockSize == 0 {
		out.BlockSize = 1_048_576
	}
	if out.SequentialThreshold == 0 {
		out.SequentialThreshold = 1_000_000_000
	}
	if out.Executor == nil {
		out.Executor = exec.Sequential{}
	}
	if out.Ctx == nil {
		out.Ctx = context.Background()
	}
	return out
}

// TrainResult reports the outcome of BaumWelch (spec §6, "Diagnostics").
type TrainResult struct {
	// Pi is the re-estimated initial distribution.
	Pi []float64

	// A is the re-estimated transition matrix.
	A *matrix.Dense

	// Iterations is how many iterations ran.
	Iterations int

	// Converged is true when both ε_π and ε_A thresholds were satisfied
	// before MaxIterations.
	Converged bool

	// LogLikelihood is the final iteration's log P(O | π,A,B).
	LogLikelihood float64
}

// DecodeConfig holds the Viterbi parameters from spec §6.
type DecodeConfig struct {
	// BlockSize is viterbiBlockSize; default 1_048_576.
	BlockSize int

	// Executor schedules block tasks; nil defaults to exec.Sequential{}.
	Executor exec.Executor
}

// WithDefaults fills zero-valued fields with the spec §6 defaults.
func (cfg DecodeConfig) WithDefaults() DecodeConfig {
	out := cfg
	if out.BlockSize == 0 {
		out.BlockSize = 1_048_576
	}
	if out.Executor == nil {
		out.Executor = exec.Sequential{}
	}
	return out
}

// DecodeResult reports the outcome of Viterbi (spec §6, "Outputs").
type DecodeResult struct {
	// States is the decoded state sequence, length T.
	States []int

	// LogProbability is the log of the DP value at the optimal path.
	LogProbability float64
}

// ScanBlock describes one contiguous chunk of an ObservationSequence,
// tagged by block-id for deterministic reduction regardless of execution
// order (spec §3, ScanBlock row; spec §5, "Ordering").
type ScanBlock struct {
	ID         int
	Start, End int
	Obs        ObservationSequence
}

// blocksOf partitions [0, t) into ScanBlocks of size blockSize (the last
// may be shorter).
func blocksOf(obs ObservationSequence, blockSize int) []ScanBlock {
	t := len(obs)
	if blockSize <= 0 {
		blockSize = t
	}
	if blockSize <= 0 {
		return nil
	}

	var blocks []ScanBlock
	id := 0
	for start := 0; start < t; start += blockSize {
		end := start + blockSize
		if end > t {
			end = t
		}
		blocks = append(blocks, ScanBlock{ID: id, Start: start, End: end, Obs: obs[start:end]})
		id++
	}

	return blocks
}
