package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrDimensionMismatch is returned when the adapt mode cannot reconcile a
// provider's vector width with the column width
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Adapt modes accepted by WrapToDims, read from EMBEDDINGS_ADAPT_MODE.
// pad_or_truncate accepts any width; truncate and pad each allow one direction.
const (
	AdaptPadOrTruncate = "pad_or_truncate"
	AdaptTruncate      = "truncate"
	AdaptPad           = "pad"
)

// adaptingProvider wraps a Provider and coerces its embeddings to the width of
// the project's vector column by zero-padding or truncating.
type adaptingProvider struct {
	base       Provider
	targetDims int
	mode       string
}

// WrapToDims returns a Provider that adapts output vectors to targetDims using the given mode.
// If base already matches targetDims, base is returned unchanged.
func WrapToDims(base Provider, targetDims int, mode string) Provider {
	if base == nil || targetDims <= 0 || base.Dimensions() == targetDims {
		return base
	}
	m := strings.ToLower(strings.TrimSpace(mode))
	switch m {
	case AdaptPadOrTruncate, AdaptTruncate, AdaptPad:
	case "":
		m = AdaptPadOrTruncate
	default:
		slog.Warn("unknown embeddings adapt mode, using pad_or_truncate", "mode", mode)
		m = AdaptPadOrTruncate
	}
	return &adaptingProvider{base: base, targetDims: targetDims, mode: m}
}

func (p *adaptingProvider) Name() string { return p.base.Name() }

func (p *adaptingProvider) Dimensions() int { return p.targetDims }

func (p *adaptingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	vecs, err := p.base.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if out[i], err = adaptVector(v, p.targetDims, p.mode); err != nil {
			return nil, fmt.Errorf("%s embedding %d: %w", p.base.Name(), i, err)
		}
	}
	return out, nil
}

// adaptVector coerces v to target components. pad_or_truncate does whatever
// is needed; truncate only shortens and pad only zero-fills, so a vector that
// would need the other operation is rejected with ErrDimensionMismatch.
func adaptVector(v []float32, target int, mode string) ([]float32, error) {
	n := len(v)
	if target <= 0 || n == target {
		return v, nil
	}
	if n > target {
		if mode == AdaptPad {
			return nil, fmt.Errorf("%w: got %d, want %d and mode %q does not truncate", ErrDimensionMismatch, n, target, mode)
		}
		return v[:target], nil
	}
	if mode == AdaptTruncate {
		return nil, fmt.Errorf("%w: got %d, want %d and mode %q does not pad", ErrDimensionMismatch, n, target, mode)
	}
	out := make([]float32, target)
	copy(out, v)
	return out, nil
}
