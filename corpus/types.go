// Package corpus defines the data-model types shared by the EM theme
// fitter and the driver: background models, documents, time partitions,
// themes, and the EmInput a single EM fit is built from and mutates.
//
// None of these types construct themselves from raw text — tokenizing
// articles, building the vocabulary, and partitioning by time interval
// are external collaborators' jobs (see spec §1, "Out of scope"). corpus
// only shapes what those collaborators hand to the EM fitter and the
// driver, and validates the invariants the rest of the module relies on.
package corpus

import "errors"

// Sentinel errors for corpus construction and validation.
var (
	// ErrInvalidConfiguration indicates an out-of-range parameter (K<=0,
	// lambdaBackground outside (0,1), and similar fit-time misconfiguration).
	ErrInvalidConfiguration = errors.New("corpus: invalid configuration")

	// ErrEmptyInput indicates a TimePartition with no documents. A
	// document whose WordCounts is empty passes validation; em.Fit skips it.
	ErrEmptyInput = errors.New("corpus: empty input")

	// ErrNegativeCount indicates a word count <= 0 was supplied; counts
	// must be positive integers per spec §3.
	ErrNegativeCount = errors.New("corpus: non-positive word count")
)

// BackgroundModel is the global word distribution p_B(w), immutable across
// a pipeline run. Keys are word ids in [0, vocabulary.Size()); values sum to 1.
type BackgroundModel map[int]float64

// Prob returns p_B(w), or floor if w is absent (the "zero-count word in
// background" edge case from spec §4.1, "Edge cases").
func (b BackgroundModel) Prob(word int, floor float64) float64 {
	if p, ok := b[word]; ok && p > 0 {
		return p
	}
	return floor
}

// Document is a multiset of (word id -> count) belonging to one TimePartition.
type Document struct {
	// ID identifies the document within its owning partition.
	ID string

	// Title is a human-readable label, carried through for topDocuments
	// reporting; not interpreted by EM.
	Title string

	// WordCounts maps word id to its positive occurrence count in this document.
	WordCounts map[int]int
}

// DistinctWords returns |W_d|, the number of distinct words in the document,
// used as the per-document normalizer in the EM log-likelihood (spec §4.1).
func (d Document) DistinctWords() int {
	return len(d.WordCounts)
}

// TotalCount returns Σ_w c(w,d).
func (d Document) TotalCount() int {
	var total int
	for _, c := range d.WordCounts {
		total += c
	}
	return total
}

// Validate checks the positive-count invariant from spec §3's Document row.
func (d Document) Validate() error {
	for w, c := range d.WordCounts {
		if c <= 0 {
			return ErrNegativeCount
		}
		_ = w
	}
	return nil
}

// TimePartition is a contiguous interval of the collection (spec GLOSSARY,
// "time partition") across which themes are jointly fit.
type TimePartition struct {
	// ID identifies the partition (e.g. a week number).
	ID string

	// Interval is a human-readable label for the covered span; the core
	// does not interpret it, it is carried through to diagnostics.
	Interval string

	// Documents is the set of documents assigned to this partition by
	// the external time-range partitioner.
	Documents []Document
}

// Validate returns ErrEmptyInput if tp has no documents, or propagates the
// first malformed Document's error.
func (tp TimePartition) Validate() error {
	if len(tp.Documents) == 0 {
		return ErrEmptyInput
	}
	for _, d := range tp.Documents {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Theme is a latent word distribution fit within one TimePartition, plus
// the bookkeeping needed for downstream reporting (spec §6, "Outputs").
type Theme struct {
	// WordProbabilities is p(w|θ); keys are word ids, values sum to 1.
	WordProbabilities map[int]float64

	// TopDocuments lists document indices ranked by this theme's mixing
	// weight π_{d,θ}, populated by the driver after filtering.
	TopDocuments []int

	// AveragePi is the mean of π_{d,θ} over all documents in the
	// partition, used by the theme-filtering threshold (spec §4.1).
	AveragePi float64
}

// Clone returns a deep copy of t, so that per-iteration EM updates never
// alias a caller's Theme slice.
func (t Theme) Clone() Theme {
	wp := make(map[int]float64, len(t.WordProbabilities))
	for w, p := range t.WordProbabilities {
		wp[w] = p
	}
	td := make([]int, len(t.TopDocuments))
	copy(td, t.TopDocuments)

	return Theme{WordProbabilities: wp, TopDocuments: td, AveragePi: t.AveragePi}
}

// EmInput is created from a TimePartition + BackgroundModel, mutated only
// by its EM fit, and read-only thereafter (spec §3, "Lifecycle").
type EmInput struct {
	// Background is the fixed background distribution this partition is
	// fit against.
	Background BackgroundModel

	// Documents is the partition's document set; never mutated by EM.
	Documents []Document

	// Themes holds the K fitted theme distributions once Fit returns.
	Themes []Theme

	// Mixing holds π_{d,j}, the per-document mixing weight for theme j,
	// indexed Mixing[d][j]. Documents' word domain must be a subset of
	// the union of all Themes' word domains (spec §3 invariant).
	Mixing [][]float64

	// PartitionID identifies which TimePartition this input was built from.
	PartitionID string

	// RunID distinguishes independent restarts of the same partition
	// (spec §4.1, "Restart policy").
	RunID int

	// Iterations records how many EM iterations this input's best fit ran.
	Iterations int
}

// NewEmInput builds an EmInput from a TimePartition and BackgroundModel,
// validating the invariants from spec §3 and initializing K empty themes
// and a |D|×K mixing matrix. Does not perform any EM iteration.
func NewEmInput(tp TimePartition, bg BackgroundModel, k int, runID int) (EmInput, error) {
	if k <= 0 {
		return EmInput{}, ErrInvalidConfiguration
	}
	if err := tp.Validate(); err != nil {
		return EmInput{}, err
	}

	themes := make([]Theme, k)
	for j := range themes {
		themes[j] = Theme{WordProbabilities: make(map[int]float64)}
	}

	mixing := make([][]float64, len(tp.Documents))
	for d := range mixing {
		mixing[d] = make([]float64, k)
	}

	return EmInput{
		Background:  bg,
		Documents:   tp.Documents,
		Themes:      themes,
		Mixing:      mixing,
		PartitionID: tp.ID,
		RunID:       runID,
	}, nil
}
