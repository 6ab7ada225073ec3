package ingest

import "fmt"

const (
	PlayerChunkSize     = 100
	StatChunkSize       = 50
	ProjectionChunkSize = 50
)

// BatchResult summarises a bulk sync. Item failures are collected and do not
// stop the batch.
type BatchResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Success reports whether the batch did useful work: some items succeeded,
// or nothing failed.
func (r *BatchResult) Success() bool {
	return r.Succeeded > 0 || r.Failed == 0
}

func (r *BatchResult) ok(n int) {
	r.Processed += n
	r.Succeeded += n
}

func (r *BatchResult) fail(n int, format string, args ...interface{}) {
	r.Processed += n
	r.Failed += n
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *BatchResult) merge(other *BatchResult) {
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
