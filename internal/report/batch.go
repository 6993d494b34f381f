package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"demski/internal/engine"
)

// BatchHeader names the columns written by BatchWriter.
var BatchHeader = []string{"file", "samples", "probability", "updated_samples", "updated_probability"}

// BatchWriter writes one CSV row per session. Sessions without an update
// leave the updated columns empty.
type BatchWriter struct {
	w      *csv.Writer
	header bool
}

func NewBatchWriter(w io.Writer) *BatchWriter {
	return &BatchWriter{w: csv.NewWriter(w)}
}

// Write appends the row for file, preceded by the header on first use.
func (b *BatchWriter) Write(file string, res *engine.Result) error {
	if !b.header {
		if err := b.w.Write(BatchHeader); err != nil {
			return err
		}
		b.header = true
	}
	rec := []string{
		file,
		strconv.Itoa(res.InitialSamples),
		FormatProbability(res.InitialProbability()),
		"",
		"",
	}
	if res.Updated {
		rec[3] = strconv.Itoa(res.UpdatedSamples)
		rec[4] = FormatProbability(res.UpdatedProbability())
	}
	return b.w.Write(rec)
}

// Flush writes buffered rows and returns any write error.
func (b *BatchWriter) Flush() error {
	b.w.Flush()
	return b.w.Error()
}

// FormatProbability rounds p to four decimal places.
func FormatProbability(p float64) string {
	return strconv.FormatFloat(math.Round(p*1e4)/1e4, 'f', 4, 64)
}
