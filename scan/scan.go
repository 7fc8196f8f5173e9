// Package scan implements the generic block-parallel associative scan
// (prefix/suffix product) described in spec §4.3. It is the shared
// machinery behind the hmm package's block-parallel forward (alpha) and
// backward (beta) recurrences: both are associative matrix-chain products
// and are computed by instantiating ScanLeft/ScanRight with V = matrix
// (or vector) and ⊕ = the appropriate product.
//
// The engine makes no assumption about V beyond associativity of op under
// identity; callers supply both. When the input fits in a single block
// (blockSize <= 0 or blockSize >= len(values)), the block algorithm
// reduces to the sequential fold. hmm's sequential Baum-Welch fallback
// (baumWelchSequentialIteration) is a separate implementation and does
// not call this package.
package scan

import (
	"github.com/theme-lifecycle/themewave/exec"
)

// Op is a binary operator V × V -> V. Callers are responsible for
// supplying an operator that is associative over identity; ScanLeft and
// ScanRight never verify this.
type Op[V any] func(a, b V) V

// block describes one contiguous chunk of the input, tagged by its
// block-id so that block outputs can be sorted and reduced deterministically
// regardless of the order the Executor actually completes them in (spec
// §5, "Ordering").
type block struct {
	id, start, end int
}

// blocksOf partitions [0, n) into contiguous blocks of size blockSize
// (the last block may be shorter), per spec §4.3 step 1.
func blocksOf(n, blockSize int) []block {
	if blockSize <= 0 {
		blockSize = n
	}
	if blockSize <= 0 {
		return nil
	}

	var blocks []block
	id := 0
	for start := 0; start < n; start += blockSize {
		end := start + blockSize
		if end > n {
			end = n
		}
		blocks = append(blocks, block{id: id, start: start, end: end})
		id++
	}

	return blocks
}

// ScanLeft computes the left-scan s_t = v_0 ⊕ ... ⊕ v_t for t in
// [0, len(values)) using the four-stage block algorithm of spec §4.3:
// local pass, sequential reduce of per-block last elements into block
// offsets, then finalize by premultiplying each block's local prefixes
// by its offset. ex may be nil, in which case exec.Sequential{} is used
// (degrading Run to synchronous, in-order execution — still correct,
// just not parallel).
func ScanLeft[V any](values []V, op Op[V], identity V, blockSize int, ex exec.Executor) []V {
	n := len(values)
	out := make([]V, n)
	if n == 0 {
		return out
	}
	if ex == nil {
		ex = exec.Sequential{}
	}

	blocks := blocksOf(n, blockSize)

	// Stage 1 (local pass): within each block, compute in-block prefix
	// products in parallel; remember each block's last local product r_k.
	lastOfBlock := make([]V, len(blocks))
	tasks := make([]func() error, len(blocks))
	for bi, b := range blocks {
		bi, b := bi, b
		tasks[bi] = func() error {
			acc := identity
			for t := b.start; t < b.end; t++ {
				acc = op(acc, values[t])
				out[t] = acc
			}
			lastOfBlock[bi] = acc
			return nil
		}
	}
	_ = ex.Run(tasks)

	// Stage 2 (reduce): sequentially fold r_0..r_{B-1} into block offsets
	// o_0 = identity, o_k = o_{k-1} ⊕ r_{k-1}. This is the one sequential
	// coordinator step per spec §4.3/§5.
	offsets := make([]V, len(blocks))
	acc := identity
	for bi := range blocks {
		offsets[bi] = acc
		acc = op(acc, lastOfBlock[bi])
	}

	// Stage 3 (finalize): premultiply every partial in block k by o_k to
	// obtain global prefixes, in parallel per block.
	finalizeTasks := make([]func() error, len(blocks))
	for bi, b := range blocks {
		bi, b := bi, b
		finalizeTasks[bi] = func() error {
			if bi == 0 {
				return nil // offsets[0] == identity; nothing to premultiply.
			}
			o := offsets[bi]
			for t := b.start; t < b.end; t++ {
				out[t] = op(o, out[t])
			}
			return nil
		}
	}
	_ = ex.Run(finalizeTasks)

	return out
}

// ScanRight computes the right-scan (suffix product) s_t = v_t ⊕ ... ⊕
// v_{n-1} using the mirror image of ScanLeft's block algorithm: local
// suffix pass per block, sequential reduce of each block's first local
// product into suffix offsets, then finalize.
func ScanRight[V any](values []V, op Op[V], identity V, blockSize int, ex exec.Executor) []V {
	n := len(values)
	out := make([]V, n)
	if n == 0 {
		return out
	}
	if ex == nil {
		ex = exec.Sequential{}
	}

	blocks := blocksOf(n, blockSize)

	// Stage 1 (local pass): within each block, compute in-block suffix
	// products; remember each block's first local product.
	firstOfBlock := make([]V, len(blocks))
	tasks := make([]func() error, len(blocks))
	for bi, b := range blocks {
		bi, b := bi, b
		tasks[bi] = func() error {
			acc := identity
			for t := b.end - 1; t >= b.start; t-- {
				acc = op(values[t], acc)
				out[t] = acc
			}
			firstOfBlock[bi] = acc
			return nil
		}
	}
	_ = ex.Run(tasks)

	// Stage 2 (reduce): sequentially fold block-first products from the
	// last block to the first into suffix offsets.
	offsets := make([]V, len(blocks))
	acc := identity
	for bi := len(blocks) - 1; bi >= 0; bi-- {
		offsets[bi] = acc
		acc = op(firstOfBlock[bi], acc)
	}

	// Stage 3 (finalize): postmultiply every partial in block k by o_k.
	finalizeTasks := make([]func() error, len(blocks))
	for bi, b := range blocks {
		bi, b := bi, b
		finalizeTasks[bi] = func() error {
			if bi == len(blocks)-1 {
				return nil
			}
			o := offsets[bi]
			for t := b.start; t < b.end; t++ {
				out[t] = op(out[t], o)
			}
			return nil
		}
	}
	_ = ex.Run(finalizeTasks)

	return out
}

// Fold sequentially reduces values with op starting from identity; it is
// the ground-truth "sequential fold" that spec §8's scan-engine invariant
// checks block-parallel ScanLeft/ScanRight prefixes against.
func Fold[V any](values []V, op Op[V], identity V) V {
	acc := identity
	for _, v := range values {
		acc = op(acc, v)
	}
	return acc
}
