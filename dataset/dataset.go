// Package dataset loads mileage/price training data from delimited files.
package dataset

import "errors"

var (
	ErrSourceNotFound   = errors.New("dataset source not found")
	ErrPermissionDenied = errors.New("dataset permission denied")
	ErrSchema           = errors.New("dataset schema error")
	ErrEmptyDataset     = errors.New("no valid data found in dataset")
)

// Sample is one (mileage, price) observation.
type Sample struct {
	X float64 `json:"km"`
	Y float64 `json:"price"`
}

// Dataset is the ordered, validated result of one load. It is never empty.
type Dataset struct {
	source  string
	samples []Sample
	skipped []RowIssue
	stats   Stats
}

func (d *Dataset) Source() string {
	return d.source
}

func (d *Dataset) Len() int {
	return len(d.samples)
}

// Samples returns a copy of the accepted samples in file order.
func (d *Dataset) Samples() []Sample {
	out := make([]Sample, len(d.samples))
	copy(out, d.samples)
	return out
}

// Xs returns the mileage column.
func (d *Dataset) Xs() []float64 {
	xs := make([]float64, len(d.samples))
	for i, s := range d.samples {
		xs[i] = s.X
	}
	return xs
}

// Ys returns the price column.
func (d *Dataset) Ys() []float64 {
	ys := make([]float64, len(d.samples))
	for i, s := range d.samples {
		ys[i] = s.Y
	}
	return ys
}

// Skipped returns the rows rejected during the load.
func (d *Dataset) Skipped() []RowIssue {
	out := make([]RowIssue, len(d.skipped))
	copy(out, d.skipped)
	return out
}

func (d *Dataset) Stats() Stats {
	stats := d.stats
	stats.Issues = make(map[string]int, len(d.stats.Issues))
	for k, v := range d.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// New builds a Dataset from samples that are already known to be valid.
// It applies the default rules and fails with ErrEmptyDataset when nothing survives.
func New(source string, samples []Sample) (*Dataset, error) {
	b := newBuilder(source, DefaultRules())
	for i, s := range samples {
		b.add(rowResult{row: i + 1, sample: s})
	}
	return b.build()
}
