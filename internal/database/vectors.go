package database

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"

	"github.com/pgvector/pgvector-go"
)

// sanitizeVector replaces NaN and Inf components with 0
func sanitizeVector(numbers []float32) []float32 {
	out := make([]float32, len(numbers))
	for i, n := range numbers {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			slog.Warn("invalid vector value detected, using 0.0 instead", "index", i, "value", n)
			continue
		}
		out[i] = n
	}
	return out
}

// toVector validates the width of an embedding and converts it to a pgvector
// parameter. An empty embedding maps to SQL NULL.
func toVector(numbers []float32, dims int) (any, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	if len(numbers) != dims {
		return nil, fmt.Errorf("%w: vector must have exactly %d dimensions, got %d", ErrInvalidEmbedding, dims, len(numbers))
	}
	return pgvector.NewVector(sanitizeVector(numbers)), nil
}

// finiteScore maps the NaN produced by zero vectors under cosine distance to 0
func finiteScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// coerceToFloat32Slice attempts to interpret arbitrary slice-like inputs as a []float32
func coerceToFloat32Slice(value interface{}) ([]float32, bool, error) {
	switch v := value.(type) {
	case []float32:
		out := make([]float32, len(v))
		copy(out, v)
		return out, true, nil
	case []float64:
		out := make([]float32, len(v))
		for i, n := range v {
			out[i] = float32(n)
		}
		return out, true, nil
	case []byte, string:
		// strings are query text, not vectors
		return nil, false, nil
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false, nil
	}
	out := make([]float32, rv.Len())
	for i := range out {
		f, err := toFloat32(rv.Index(i).Interface())
		if err != nil {
			return nil, false, fmt.Errorf("invalid vector element at index %d: %w", i, err)
		}
		out[i] = f
	}
	return out, true, nil
}

func toFloat32(el any) (float32, error) {
	switch x := el.(type) {
	case float64:
		return float32(x), nil
	case float32:
		return x, nil
	case int:
		return float32(x), nil
	case int64:
		return float32(x), nil
	case int32:
		return float32(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		return float32(f), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, err
		}
		return float32(f), nil
	default:
		return 0, fmt.Errorf("unsupported element type %T", el)
	}
}
