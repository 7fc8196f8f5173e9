package driver

import (
	"fmt"

	"github.com/theme-lifecycle/themewave/corpus"
	"github.com/theme-lifecycle/themewave/em"
	"github.com/theme-lifecycle/themewave/hmm"
)

// FitPartition runs cfg.EmRestarts independent em.Fit restarts over tp
// (each with its own RunID, so em.Fit's own seed+RunID derivation gives
// each restart an independent stream), keeps the max-log-likelihood
// restart (grounded on tsp/solve.go's dispatch-and-compare-candidates
// shape), optionally filters themes, and shapes the winner into an
// hmm.HMM via hmm.FromThemes. When obs is non-empty, it additionally
// trains that HMM with hmm.BaumWelch and decodes obs with hmm.Viterbi
// (spec §4.6). FitPartition performs no fitting logic itself beyond this
// selection and shaping.
func FitPartition(tp corpus.TimePartition, bg corpus.BackgroundModel, obs hmm.ObservationSequence, cfg Config) (PartitionResult, error) {
	cfg = cfg.WithDefaults()
	if cfg.VocabSize <= 0 {
		return PartitionResult{}, ErrInvalidConfiguration
	}
	if err := tp.Validate(); err != nil {
		return PartitionResult{}, fmt.Errorf("driver: %w", err)
	}

	type restartOutcome struct {
		input corpus.EmInput
		diag  em.Diagnostics
		err   error
	}
	outcomes := make([]restartOutcome, cfg.EmRestarts)

	tasks := make([]func() error, cfg.EmRestarts)
	for r := 0; r < cfg.EmRestarts; r++ {
		r := r
		tasks[r] = func() error {
			in, err := corpus.NewEmInput(tp, bg, cfg.EM.K, r)
			if err != nil {
				outcomes[r] = restartOutcome{err: err}
				return nil
			}
			fitted, diag, err := em.Fit(in, cfg.EM)
			outcomes[r] = restartOutcome{input: fitted, diag: diag, err: err}
			return nil
		}
	}
	_ = cfg.Executor.Run(tasks)

	bestIdx := -1
	for i, o := range outcomes {
		if o.err != nil {
			continue
		}
		if bestIdx == -1 || o.diag.LogLikelihood > outcomes[bestIdx].diag.LogLikelihood {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return PartitionResult{}, fmt.Errorf("driver: all %d restarts failed: %w", cfg.EmRestarts, outcomes[0].err)
	}

	best := outcomes[bestIdx].input
	if cfg.ThemeFilterTau > 0 {
		best = em.FilterThemes(best, cfg.ThemeFilterTau)
	}

	model, err := hmm.FromThemes(bg, best.Themes, cfg.VocabSize)
	if err != nil {
		return PartitionResult{}, fmt.Errorf("driver: %w", err)
	}

	result := PartitionResult{
		PartitionID: tp.ID,
		Best:        best,
		Diagnostics: outcomes[bestIdx].diag,
		Model:       model,
	}

	if len(obs) == 0 {
		return result, nil
	}

	trainResult, err := hmm.BaumWelch(model, obs, cfg.Train)
	if err != nil {
		return result, mapHMMError(err)
	}
	result.Train = &trainResult

	trainedModel, err := hmm.New(trainResult.Pi, trainResult.A, model.B)
	if err != nil {
		return result, fmt.Errorf("driver: %w", err)
	}
	result.Model = trainedModel

	decodeResult, err := hmm.Viterbi(trainedModel, obs, cfg.Decode)
	if err != nil {
		return result, mapHMMError(err)
	}
	result.Decode = &decodeResult

	if !trainResult.Converged {
		return result, ErrDidNotConverge
	}

	return result, nil
}

// mapHMMError translates hmm sentinel errors onto the driver's own, so
// callers only ever need to check driver's sentinels.
func mapHMMError(err error) error {
	switch err {
	case hmm.ErrCancelled:
		return ErrCancelled
	case hmm.ErrTimedOut:
		return ErrTimedOut
	default:
		return fmt.Errorf("driver: %w", err)
	}
}

// PartitionWork pairs one TimePartition with its own observation sequence
// for DecodeManyPartitions (spec §4.6 [EXPANSION]).
type PartitionWork struct {
	Partition corpus.TimePartition
	Obs       hmm.ObservationSequence
}

// DecodeManyPartitions fans FitPartition out over multiple partitions
// concurrently via cfg.Executor (spec §5 axis 1: "across partitions, each
// partition's fit is independent"). Each partition gets an independent
// RNG stream derived from cfg.RNGSeed via em.DeriveRNG, keyed by its
// position in work, so results are reproducible regardless of execution
// order.
func DecodeManyPartitions(work []PartitionWork, bg corpus.BackgroundModel, cfg Config) ([]PartitionResult, error) {
	cfg = cfg.WithDefaults()
	if len(work) == 0 {
		return nil, ErrInvalidConfiguration
	}

	results := make([]PartitionResult, len(work))
	errs := make([]error, len(work))

	tasks := make([]func() error, len(work))
	for i, w := range work {
		i, w := i, w
		tasks[i] = func() error {
			partitionCfg := cfg
			partitionCfg.EM.RNGSeed = deriveSeedForPartition(cfg.RNGSeed, uint64(i))
			r, err := FitPartition(w.Partition, bg, w.Obs, partitionCfg)
			results[i] = r
			errs[i] = err
			return nil
		}
	}
	_ = cfg.Executor.Run(tasks)

	for _, e := range errs {
		if e != nil && e != ErrDidNotConverge {
			return results, e
		}
	}

	for _, e := range errs {
		if e == ErrDidNotConverge {
			return results, ErrDidNotConverge
		}
	}

	return results, nil
}

// deriveSeedForPartition produces an independent base seed per partition
// from a single shared seed, using em.DeriveRNG's SplitMix64 mixing
// (grounded on tsp/rng.go's deriveRNG) rather than a naive seed+index sum.
func deriveSeedForPartition(baseSeed, partitionIndex uint64) uint64 {
	rng := em.DeriveRNG(baseSeed, partitionIndex)
	return rng.Uint64()
}
