// Package database declares the repository contracts for the Embedding
// Store (spec §4.D) and the vector codec they share with the pgx
// implementation in internal/database/postgres.
package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the fixed width of every stored embedding (spec §4.D).
const EmbeddingDim = 512

// EncodeVector prepares embedding for a query parameter. When native is
// true the column has the pgvector extension's vector type and a
// pgvector.Vector is bound directly; otherwise the value is bound as a
// JSON numeric array string for a plain column (spec §4.D: "Vector
// columns use the database's native vector type when present;
// otherwise they serialize as a JSON numeric array").
func EncodeVector(embedding []float32, native bool) (any, error) {
	if len(embedding) != EmbeddingDim {
		return nil, fmt.Errorf("embedding has length %d, want %d", len(embedding), EmbeddingDim)
	}
	if native {
		return pgvector.NewVector(embedding), nil
	}
	return jsonArray(embedding), nil
}

// DecodeVector parses a scanned vector column value, which may be a
// native pgvector.Vector, a driver-returned bracketed text form, or a
// JSON-array string (spec §4.D: "vectors may come back as either a
// native array or a bracketed comma-separated text form — both must
// parse").
func DecodeVector(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case pgvector.Vector:
		return v.Slice(), nil
	case *pgvector.Vector:
		return v.Slice(), nil
	case string:
		return parseVectorText(v)
	case []byte:
		return parseVectorText(string(v))
	case nil:
		return nil, fmt.Errorf("vector column was null")
	default:
		return nil, fmt.Errorf("unsupported vector column type %T", raw)
	}
}

func jsonArray(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVectorText parses both pgvector's native bracketed text output
// ("[0.1,0.2,...]") and a plain JSON array of the same shape.
func parseVectorText(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parsing vector element %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}
