// Package em implements the per-partition EM theme fitter (spec §4.1): a
// mixture model of K themes plus a fixed background distribution, fit by
// expectation-maximization over a TimePartition's documents.
package em

import "errors"

// Sentinel errors for em.Fit and em.FilterThemes.
var (
	// ErrInvalidConfiguration indicates K<=0, LambdaBackground outside
	// (0,1), or another out-of-range Config field.
	ErrInvalidConfiguration = errors.New("em: invalid configuration")

	// ErrEmptyInput indicates an EmInput with no documents. It is em's own
	// sentinel, distinct from corpus.ErrEmptyInput.
	ErrEmptyInput = errors.New("em: empty input")

	// ErrNumericalDegeneracy indicates a normalization denominator fell
	// to zero for an entire theme despite the epsilon floor (e.g. no
	// document ever assigned it non-trivial mass); the iteration is
	// aborted and the previous parameters retained (spec §7).
	ErrNumericalDegeneracy = errors.New("em: numerical degeneracy")

	// ErrDiverged indicates 3 consecutive ErrNumericalDegeneracy events;
	// the fit is aborted (spec §7).
	ErrDiverged = errors.New("em: diverged")
)
