package driver

import (
	"github.com/theme-lifecycle/themewave/corpus"
	"github.com/theme-lifecycle/themewave/em"
	"github.com/theme-lifecycle/themewave/exec"
	"github.com/theme-lifecycle/themewave/hmm"
)

// Config aggregates the per-partition fitting parameters from spec §6:
// EM restarts and fit parameters, theme filtering, and the HMM's
// training/decoding parameters.
type Config struct {
	// EM is the per-restart EM configuration.
	EM em.Config

	// EmRestarts is R, the number of independent EM restarts per
	// partition (spec §4.1, "Restart policy"). Default 1.
	EmRestarts int

	// ThemeFilterTau scales the average-pi threshold passed to
	// em.FilterThemes. Zero disables filtering.
	ThemeFilterTau float64

	// VocabSize is M, the size of the shared vocabulary; required to
	// build the HMM's B matrix via hmm.FromThemes.
	VocabSize int

	// Train holds the Baum-Welch parameters used when an observation
	// sequence is supplied to FitPartition.
	Train hmm.TrainConfig

	// Decode holds the Viterbi parameters used when an observation
	// sequence is supplied to FitPartition.
	Decode hmm.DecodeConfig

	// Executor schedules independent restarts (within one partition)
	// and independent partitions (across DecodeManyPartitions). Nil
	// defaults to exec.Sequential{}.
	Executor exec.Executor

	// RNGSeed is the base seed from which DecodeManyPartitions derives
	// each partition's EM.RNGSeed via em.DeriveRNG. FitPartition does not
	// read it; its restarts seed from EM.RNGSeed plus their RunID.
	RNGSeed uint64
}

// WithDefaults fills zero-valued fields with spec §6 defaults.
func (cfg Config) WithDefaults() Config {
	out := cfg
	if out.EmRestarts <= 0 {
		out.EmRestarts = 1
	}
	if out.Executor == nil {
		out.Executor = exec.Sequential{}
	}
	out.EM = out.EM.WithDefaults()
	out.Train = out.Train.WithDefaults()
	out.Decode = out.Decode.WithDefaults()
	return out
}

// PartitionResult is the outcome of fitting and, optionally, training and
// decoding one TimePartition (spec §4.6).
type PartitionResult struct {
	// PartitionID identifies which TimePartition this result is for.
	PartitionID string

	// Best is the winning restart's post-fit, post-filter EmInput.
	Best corpus.EmInput

	// Diagnostics reports the winning restart's EM outcome.
	Diagnostics em.Diagnostics

	// Model is the HMM shaped from Best's themes via hmm.FromThemes.
	Model *hmm.HMM

	// Train is the Baum-Welch outcome, nil if no observation sequence
	// was supplied to FitPartition.
	Train *hmm.TrainResult

	// Decode is the Viterbi outcome, nil if no observation sequence was
	// supplied to FitPartition.
	Decode *hmm.DecodeResult
}
