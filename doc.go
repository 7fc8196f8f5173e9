// Package themewave implements the numerical core of a theme life-cycle
// pipeline: EM theme extraction within a time partition, and a
// block-parallel Baum-Welch/Viterbi Hidden Markov Model that shares a
// vocabulary with the EM fitter and tracks how themes transition over
// time.
//
// Subpackages:
//
//	vocab/   — the surface-token <-> word-id bijection every other package depends on
//	matrix/  — dense row-major matrices with fast-path/fallback kernels
//	scan/    — the generic block-parallel associative scan engine
//	exec/    — the minimal Executor abstraction (Sequential, persistent Pool)
//	corpus/  — shared data model: BackgroundModel, Document, TimePartition, Theme, EmInput
//	em/      — the EM theme fitter (Fit, FilterThemes)
//	hmm/     — HMM storage, block-parallel Baum-Welch, block-parallel Viterbi
//	driver/  — restart policy, HMM shaping, optional training/decoding
//
// Ingestion, vocabulary construction, persistence, a CLI, and logging are
// all external collaborators' responsibilities; this module is a pure
// numerical library with no dependency beyond testify in its test suite.
package themewave
