// Package hmm holds the Hidden Markov Model core (spec §4.2-§4.5): storage
// for (π, A, B), block-parallel Baum-Welch training, and block-parallel
// Viterbi decoding, all expressed over the generic scan.ScanLeft/ScanRight
// engine and the exec.Executor abstraction.
package hmm

import "errors"

// Sentinel errors for hmm construction, training, and decoding.
var (
	// ErrInvalidConfiguration indicates a malformed HMM (non-stochastic
	// π/A/B) or an out-of-range TrainConfig/DecodeConfig field.
	ErrInvalidConfiguration = errors.New("hmm: invalid configuration")

	// ErrBlockSizeMismatch indicates a block's content is missing
	// observations relative to its declared [start, end) range — a
	// fatal, upstream-bug-indicating condition (spec §7).
	ErrBlockSizeMismatch = errors.New("hmm: block size mismatch")

	// ErrNumericalDegeneracy indicates a normalization denominator fell
	// to zero despite the epsilon floor during re-estimation; the
	// iteration is aborted and the previous π, A retained.
	ErrNumericalDegeneracy = errors.New("hmm: numerical degeneracy")

	// ErrDiverged indicates 3 consecutive ErrNumericalDegeneracy events.
	ErrDiverged = errors.New("hmm: diverged")

	// ErrCancelled indicates the caller's context was cancelled between
	// iterations (spec §5, "Cancellation & timeouts").
	ErrCancelled = errors.New("hmm: cancelled")

	// ErrTimedOut indicates the per-run wall-clock timeout elapsed; the
	// current iteration still completed before aborting (spec §5).
	ErrTimedOut = errors.New("hmm: timed out")
)
