package hmm_test

import (
	"context"
	"testing"
	"time"

	"github.com/theme-lifecycle/themewave/exec"
	"github.com/theme-lifecycle/themewave/hmm"
	"github.com/theme-lifecycle/themewave/matrix"
	"github.com/stretchr/testify/require"
)

// twoStateModel builds the 2-state HMM used by scenarios 4-6: a
// background state and one theme state, each emitting over a 2-word
// vocabulary, with a deliberately off prior so training has something
// to recover.
func twoStateModel(t *testing.T) *hmm.HMM {
	t.Helper()

	a, err := matrix.NewDense(2, 2)
	require.NoError(t, err)
	require.NoError(t, a.Set(0, 0, 0.6))
	require.NoError(t, a.Set(0, 1, 0.4))
	require.NoError(t, a.Set(1, 0, 0.3))
	require.NoError(t, a.Set(1, 1, 0.7))

	b, err := matrix.NewDense(2, 2)
	require.NoError(t, err)
	require.NoError(t, b.Set(0, 0, 0.9))
	require.NoError(t, b.Set(0, 1, 0.1))
	require.NoError(t, b.Set(1, 0, 0.2))
	require.NoError(t, b.Set(1, 1, 0.8))

	h, err := hmm.New([]float64{0.5, 0.5}, a, b)
	require.NoError(t, err)
	return h
}

// generateSequence deterministically walks the model to produce an
// observation sequence long enough to re-estimate A from (scenario 4's
// "1000-length sequence").
func generateSequence(h *hmm.HMM, length int, seed uint64) hmm.ObservationSequence {
	rng := pseudoRNG(seed)
	obs := make(hmm.ObservationSequence, length)
	state := 0
	for i := 0; i < length; i++ {
		r := rng()
		if state == 0 {
			if r < 0.9 {
				obs[i] = 0
			} else {
				obs[i] = 1
			}
		} else {
			if r < 0.2 {
				obs[i] = 0
			} else {
				obs[i] = 1
			}
		}

		r2 := rng()
		if state == 0 {
			if r2 < 0.6 {
				state = 0
			} else {
				state = 1
			}
		} else {
			if r2 < 0.3 {
				state = 0
			} else {
				state = 1
			}
		}
	}
	return obs
}

// pseudoRNG is a tiny deterministic xorshift generator returning values
// in [0,1); tests need reproducibility, not cryptographic quality.
func pseudoRNG(seed uint64) func() float64 {
	state := seed
	if state == 0 {
		state = 1
	}
	return func() float64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return float64(state%1_000_000) / 1_000_000.0
	}
}

// Scenario 4 (spec §8): training on a 1000-length sequence sampled from
// the model itself keeps A within L1 distance 0.6 of the generating
// matrix after at most 50 iterations.
func TestBaumWelch_RecoversTransitionMatrix(t *testing.T) {
	t.Parallel()

	h := twoStateModel(t)
	obs := generateSequence(h, 1000, 7)

	cfg := hmm.TrainConfig{MaxIterations: 50, ForceSequential: true}
	result, err := hmm.BaumWelch(h, obs, cfg)
	require.NoError(t, err)
	require.LessOrEqual(t, result.Iterations, 50)

	l1 := 0.0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want, _ := h.A.At(i, j)
			got, _ := result.A.At(i, j)
			d := want - got
			if d < 0 {
				d = -d
			}
			l1 += d
		}
	}
	require.Less(t, l1, 0.6, "trained A should move toward the generating matrix")
}

// Row-stochastic invariants must hold after every iteration (spec §8).
func TestBaumWelch_RowStochasticAfterTraining(t *testing.T) {
	t.Parallel()

	h := twoStateModel(t)
	obs := generateSequence(h, 200, 11)

	result, err := hmm.BaumWelch(h, obs, hmm.TrainConfig{MaxIterations: 10, ForceSequential: true})
	require.NoError(t, err)

	var piSum float64
	for _, p := range result.Pi {
		piSum += p
	}
	require.InDelta(t, 1.0, piSum, 1e-9)

	sums, err := matrix.RowSums(result.A)
	require.NoError(t, err)
	for _, sum := range sums {
		require.InDelta(t, 1.0, sum, 1e-9)
	}
}

// Scenario 6 (spec §8): block-parallel and sequential Baum-Welch must
// agree to 1e-9 at bwBlockSize=16, T=1024.
func TestBaumWelch_BlockAgreesWithSequential(t *testing.T) {
	t.Parallel()

	h := twoStateModel(t)
	obs := generateSequence(h, 1024, 23)

	seqResult, err := hmm.BaumWelch(h, obs, hmm.TrainConfig{MaxIterations: 1, ForceSequential: true})
	require.NoError(t, err)

	pool := exec.NewPool(4)
	defer pool.Close()
	blockResult, err := hmm.BaumWelch(h, obs, hmm.TrainConfig{MaxIterations: 1, BlockSize: 16, Executor: pool, SequentialThreshold: 1})
	require.NoError(t, err)

	for i := range seqResult.Pi {
		require.InDelta(t, seqResult.Pi[i], blockResult.Pi[i], 1e-9)
	}
	allClose, err := matrix.AllClose(seqResult.A, blockResult.A, 0, 1e-9)
	require.NoError(t, err)
	require.True(t, allClose, "block and sequential A should agree to 1e-9")
	require.InDelta(t, seqResult.LogLikelihood, blockResult.LogLikelihood, 1e-9)
}

func TestBaumWelch_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	_, err := hmm.BaumWelch(nil, hmm.ObservationSequence{0, 1}, hmm.TrainConfig{})
	require.ErrorIs(t, err, hmm.ErrInvalidConfiguration)

	h := twoStateModel(t)
	_, err = hmm.BaumWelch(h, hmm.ObservationSequence{}, hmm.TrainConfig{})
	require.ErrorIs(t, err, hmm.ErrInvalidConfiguration)
}

// Spec §5's "Cancellation & timeouts" distinguishes a caller-initiated
// cancellation from an elapsed per-run deadline; both are checked between
// iterations, before any work for that iteration starts.
func TestBaumWelch_CancellationAndTimeout(t *testing.T) {
	t.Parallel()

	h := twoStateModel(t)
	obs := generateSequence(h, 50, 41)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hmm.BaumWelch(h, obs, hmm.TrainConfig{Ctx: cancelCtx})
	require.ErrorIs(t, err, hmm.ErrCancelled)

	deadlineCtx, cancelDeadline := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelDeadline()
	_, err = hmm.BaumWelch(h, obs, hmm.TrainConfig{Ctx: deadlineCtx})
	require.ErrorIs(t, err, hmm.ErrTimedOut)
}
