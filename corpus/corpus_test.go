package corpus_test

import (
	"testing"

	"github.com/theme-lifecycle/themewave/corpus"
	"github.com/stretchr/testify/require"
)

func partition() corpus.TimePartition {
	return corpus.TimePartition{
		ID:       "week-1",
		Interval: "2026-01-01/2026-01-07",
		Documents: []corpus.Document{
			{ID: "d1", WordCounts: map[int]int{0: 4, 1: 1}},
			{ID: "d2", WordCounts: map[int]int{0: 1, 1: 4}},
		},
	}
}

func TestTimePartition_ValidateEmpty(t *testing.T) {
	t.Parallel()

	tp := corpus.TimePartition{ID: "empty"}
	require.ErrorIs(t, tp.Validate(), corpus.ErrEmptyInput)
}

func TestDocument_ValidateNegativeCount(t *testing.T) {
	t.Parallel()

	d := corpus.Document{ID: "d1", WordCounts: map[int]int{0: 0}}
	require.ErrorIs(t, d.Validate(), corpus.ErrNegativeCount)
}

func TestDocument_DistinctWordsAndTotalCount(t *testing.T) {
	t.Parallel()

	d := corpus.Document{WordCounts: map[int]int{0: 4, 1: 1}}
	require.Equal(t, 2, d.DistinctWords())
	require.Equal(t, 5, d.TotalCount())
}

func TestBackgroundModel_ProbFloor(t *testing.T) {
	t.Parallel()

	bg := corpus.BackgroundModel{0: 0.5}
	require.InDelta(t, 0.5, bg.Prob(0, 1e-9), 1e-12)
	require.InDelta(t, 1e-9, bg.Prob(1, 1e-9), 1e-12)
}

func TestNewEmInput_HappyPath(t *testing.T) {
	t.Parallel()

	bg := corpus.BackgroundModel{0: 0.5, 1: 0.5}
	in, err := corpus.NewEmInput(partition(), bg, 2, 0)
	require.NoError(t, err)
	require.Len(t, in.Themes, 2)
	require.Len(t, in.Mixing, 2)
	require.Len(t, in.Mixing[0], 2)
	require.Equal(t, "week-1", in.PartitionID)
}

func TestNewEmInput_InvalidK(t *testing.T) {
	t.Parallel()

	bg := corpus.BackgroundModel{0: 1}
	_, err := corpus.NewEmInput(partition(), bg, 0, 0)
	require.ErrorIs(t, err, corpus.ErrInvalidConfiguration)
}

func TestNewEmInput_EmptyPartition(t *testing.T) {
	t.Parallel()

	bg := corpus.BackgroundModel{0: 1}
	_, err := corpus.NewEmInput(corpus.TimePartition{ID: "x"}, bg, 2, 0)
	require.ErrorIs(t, err, corpus.ErrEmptyInput)
}

func TestTheme_Clone(t *testing.T) {
	t.Parallel()

	th := corpus.Theme{WordProbabilities: map[int]float64{0: 0.5}, TopDocuments: []int{1, 2}}
	clone := th.Clone()
	clone.WordProbabilities[0] = 0.9
	clone.TopDocuments[0] = 99

	require.InDelta(t, 0.5, th.WordProbabilities[0], 1e-12)
	require.Equal(t, 1, th.TopDocuments[0])
}
