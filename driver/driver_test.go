package driver_test

import (
	"math"
	"testing"

	"github.com/theme-lifecycle/themewave/corpus"
	"github.com/theme-lifecycle/themewave/driver"
	"github.com/theme-lifecycle/themewave/em"
	"github.com/theme-lifecycle/themewave/hmm"
	"github.com/stretchr/testify/require"
)

func twoThemePartition() (corpus.TimePartition, corpus.BackgroundModel) {
	tp := corpus.TimePartition{
		ID: "p1",
		Documents: []corpus.Document{
			{ID: "d1", WordCounts: map[int]int{0: 4, 1: 1}},
			{ID: "d2", WordCounts: map[int]int{0: 1, 1: 4}},
			{ID: "d3", WordCounts: map[int]int{0: 3, 1: 1}},
			{ID: "d4", WordCounts: map[int]int{0: 1, 1: 3}},
		},
	}
	bg := corpus.BackgroundModel{0: 0.5, 1: 0.5}
	return tp, bg
}

// End-to-end: fit a partition, shape it into an HMM, train and decode
// against a short observation sequence (spec §8, driver scenario).
func TestFitPartition_EndToEnd(t *testing.T) {
	t.Parallel()

	tp, bg := twoThemePartition()
	cfg := driver.Config{
		EM:             em.Config{K: 2, LambdaBackground: 0.5, MaxIterations: 100, RNGSeed: 1},
		EmRestarts:     3,
		VocabSize:      2,
		ThemeFilterTau: 0,
	}

	obs := hmm.ObservationSequence{0, 0, 1, 0, 1, 1, 0}
	result, err := driver.FitPartition(tp, bg, obs, cfg)
	if err != nil {
		require.ErrorIs(t, err, driver.ErrDidNotConverge)
	}

	require.NotNil(t, result.Model)
	require.Equal(t, "p1", result.PartitionID)
	require.NotNil(t, result.Train)
	require.NotNil(t, result.Decode)
	require.Len(t, result.Decode.States, len(obs))
}

// Restart policy: among several restarts with different RNG seeds, the
// winner must be the one with the highest log-likelihood.
func TestFitPartition_PicksMaxLikelihoodRestart(t *testing.T) {
	t.Parallel()

	tp, bg := twoThemePartition()
	cfg := driver.Config{
		EM:         em.Config{K: 2, LambdaBackground: 0.5, MaxIterations: 100, RNGSeed: 99},
		EmRestarts: 5,
		VocabSize:  2,
	}

	result, err := driver.FitPartition(tp, bg, nil, cfg)
	require.NoError(t, err)
	require.False(t, math.IsNaN(result.Diagnostics.LogLikelihood))

	// Replay every restart directly; the winner carries the highest
	// log-likelihood among them.
	maxLL := math.Inf(-1)
	for r := 0; r < cfg.EmRestarts; r++ {
		in, err := corpus.NewEmInput(tp, bg, cfg.EM.K, r)
		require.NoError(t, err)
		_, d, err := em.Fit(in, cfg.EM)
		require.NoError(t, err)
		if d.LogLikelihood > maxLL {
			maxLL = d.LogLikelihood
		}
	}
	require.InDelta(t, maxLL, result.Diagnostics.LogLikelihood, 1e-12)
	require.Nil(t, result.Train)
	require.Nil(t, result.Decode)
}

func TestFitPartition_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	tp, bg := twoThemePartition()
	_, err := driver.FitPartition(tp, bg, nil, driver.Config{EM: em.Config{K: 2, LambdaBackground: 0.5}, VocabSize: 0})
	require.ErrorIs(t, err, driver.ErrInvalidConfiguration)
}

func TestDecodeManyPartitions_RunsAllPartitions(t *testing.T) {
	t.Parallel()

	tp1, bg := twoThemePartition()
	tp2, _ := twoThemePartition()
	tp2.ID = "p2"

	cfg := driver.Config{
		EM:         em.Config{K: 2, LambdaBackground: 0.5, MaxIterations: 50, RNGSeed: 5},
		EmRestarts: 2,
		VocabSize:  2,
	}

	work := []driver.PartitionWork{
		{Partition: tp1},
		{Partition: tp2},
	}
	results, err := driver.DecodeManyPartitions(work, bg, cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "p1", results[0].PartitionID)
	require.Equal(t, "p2", results[1].PartitionID)
}

func TestDecodeManyPartitions_EmptyWork(t *testing.T) {
	t.Parallel()

	_, bg := twoThemePartition()
	_, err := driver.DecodeManyPartitions(nil, bg, driver.Config{})
	require.ErrorIs(t, err, driver.ErrInvalidConfiguration)
}
