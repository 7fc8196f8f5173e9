// Package driver orchestrates the EM theme fitter and the HMM core over a
// single corpus.TimePartition (or many, concurrently): it runs the
// restart policy, keeps the best-likelihood fit, shapes the result into
// an hmm.HMM, and optionally trains/decodes that HMM against a supplied
// observation sequence. It contains no fitting logic of its own beyond
// selecting among and shaping the results of em.Fit/hmm.BaumWelch/
// hmm.Viterbi.
package driver

import "errors"

// Sentinel errors for driver orchestration.
var (
	// ErrCancelled is FitPartition's translation of hmm.ErrCancelled:
	// Baum-Welch observed a cancelled TrainConfig.Ctx between iterations.
	ErrCancelled = errors.New("driver: cancelled")

	// ErrTimedOut indicates a per-run wall-clock timeout elapsed.
	ErrTimedOut = errors.New("driver: timed out")

	// ErrDidNotConverge is non-fatal: Baum-Welch reached its iteration
	// budget without satisfying its convergence threshold. An EM restart
	// that reaches its iteration cap is not reported through it.
	// FitPartition still returns the best-so-far result alongside this
	// error so callers can decide whether to accept it.
	ErrDidNotConverge = errors.New("driver: did not converge")

	// ErrInvalidConfiguration indicates a malformed Config or empty
	// TimePartition set.
	ErrInvalidConfiguration = errors.New("driver: invalid configuration")
)
