package hmm_test

import (
	"math"
	"testing"

	"github.com/theme-lifecycle/themewave/exec"
	"github.com/theme-lifecycle/themewave/hmm"
	"github.com/stretchr/testify/require"
)

// Scenario 5 (spec §8): decoding [0,0,1,1,0,1] on the scenario-4 HMM
// should report a path log-probability equal to the DP's own max value
// to 1e-12, and that value must be the true maximum over all paths
// (checked here by brute force over all 2^6 state paths, since N=2).
func TestViterbi_SequentialMatchesBruteForce(t *testing.T) {
	t.Parallel()

	h := twoStateModel(t)
	obs := hmm.ObservationSequence{0, 0, 1, 1, 0, 1}

	result, err := hmm.Viterbi(h, obs, hmm.DecodeConfig{})
	require.NoError(t, err)
	require.Len(t, result.States, len(obs))

	best := bruteForceViterbi(t, h, obs)
	require.InDelta(t, best, result.LogProbability, 1e-12)
}

// bruteForceViterbi enumerates every state path directly from pi/A/B to
// serve as an independent ground truth for the DP (grounding: the
// definition of Viterbi decoding itself, not any specific source file).
func bruteForceViterbi(t *testing.T, h *hmm.HMM, obs hmm.ObservationSequence) float64 {
	t.Helper()

	n := h.N
	tLen := len(obs)
	best := math.Inf(-1)

	path := make([]int, tLen)
	var recurse func(pos int)
	recurse = func(pos int) {
		if pos == tLen {
			logp := math.Log(h.Pi[path[0]])
			b0, _ := h.B.At(path[0], obs[0])
			logp += math.Log(b0)
			for i := 1; i < tLen; i++ {
				a, _ := h.A.At(path[i-1], path[i])
				bi, _ := h.B.At(path[i], obs[i])
				logp += math.Log(a) + math.Log(bi)
			}
			if logp > best {
				best = logp
			}
			return
		}
		for s := 0; s < n; s++ {
			path[pos] = s
			recurse(pos + 1)
		}
	}
	recurse(0)

	return best
}

func TestViterbi_BlockAgreesWithSequential(t *testing.T) {
	t.Parallel()

	h := twoStateModel(t)
	obs := generateSequence(h, 256, 31)

	seqResult, err := hmm.Viterbi(h, obs, hmm.DecodeConfig{})
	require.NoError(t, err)

	pool := exec.NewPool(4)
	defer pool.Close()
	blockResult, err := hmm.Viterbi(h, obs, hmm.DecodeConfig{BlockSize: 16, Executor: pool})
	require.NoError(t, err)

	require.Equal(t, seqResult.States, blockResult.States)
	require.InDelta(t, seqResult.LogProbability, blockResult.LogProbability, 1e-9)
}

func TestViterbi_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	_, err := hmm.Viterbi(nil, hmm.ObservationSequence{0}, hmm.DecodeConfig{})
	require.ErrorIs(t, err, hmm.ErrInvalidConfiguration)

	h := twoStateModel(t)
	_, err = hmm.Viterbi(h, hmm.ObservationSequence{}, hmm.DecodeConfig{})
	require.ErrorIs(t, err, hmm.ErrInvalidConfiguration)
}
