// Package classifier trains the downstream model used by utility and
// fairness metrics: binary logistic regression over one-hot categorical and
// z-normalized numeric features, fit with seeded minibatch SGD. The trained
// model round-trips through JSON so runs can ship it alongside the report.
package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"synthpipe/internal/dataset"
	"synthpipe/internal/stats"
	"synthpipe/pkg/records"
)

// Options are the training hyperparameters. Zero values get defaults:
// Epochs 50, LearningRate 0.1, BatchSize 32.
type Options struct {
	Epochs       int
	LearningRate float64
	BatchSize    int
	Seed         int64
}

func (o Options) withDefaults() Options {
	if o.Epochs <= 0 {
		o.Epochs = 50
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.1
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	return o
}

// Feature describes how one input column maps into the model vector.
type Feature struct {
	Column string `json:"column"`

	// Numeric features are z-normalized with the training mean and std.
	Numeric bool    `json:"numeric"`
	Mean    float64 `json:"mean,omitempty"`
	Std     float64 `json:"std,omitempty"`

	// Categorical features one-hot over the training categories.
	Categories []string `json:"categories,omitempty"`
}

func (f Feature) width() int {
	if f.Numeric {
		return 1
	}
	return len(f.Categories)
}

// Model is a trained binary logistic regression classifier.
type Model struct {
	Target   string    `json:"target"`
	Negative string    `json:"negative"`
	Positive string    `json:"positive"`
	Features []Feature `json:"features"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
}

// Metrics are the standard binary classification scores against the
// positive label.
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Train fits a model predicting target from every other column of ds. The
// target must have exactly two distinct non-null values; the
// lexicographically larger one becomes the positive class.
func Train(ds *dataset.Dataset, target string, opts Options) (*Model, error) {
	opts = opts.withDefaults()
	if _, ok := ds.Column(target); !ok {
		return nil, fmt.Errorf("classifier: unknown target column %q", target)
	}

	labels := distinct(ds, target)
	if len(labels) != 2 {
		return nil, fmt.Errorf("classifier: target %q has %d distinct values, want 2", target, len(labels))
	}

	m := &Model{
		Target:   target,
		Negative: labels[0],
		Positive: labels[1],
	}
	for _, col := range ds.Columns {
		if col.Name == target {
			continue
		}
		m.Features = append(m.Features, fitFeature(ds, col))
	}

	width := 0
	for _, f := range m.Features {
		width += f.width()
	}
	if width == 0 {
		return nil, fmt.Errorf("classifier: no usable features besides target %q", target)
	}

	// Encode up front; rows without a target label are dropped.
	var X [][]float64
	var y []float64
	for _, row := range ds.Rows {
		label := row.String(target, "")
		if label == "" {
			continue
		}
		X = append(X, m.encode(row))
		if label == m.Positive {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("classifier: no labeled rows for target %q", target)
	}

	r := rand.New(rand.NewSource(opts.Seed))
	m.Weights = make([]float64, width)
	for i := range m.Weights {
		m.Weights[i] = r.NormFloat64() * 0.01
	}

	grad := make([]float64, width)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		perm := r.Perm(len(X))
		for start := 0; start < len(perm); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(perm) {
				end = len(perm)
			}
			for i := range grad {
				grad[i] = 0
			}
			gradB := 0.0
			for _, p := range perm[start:end] {
				err := sigmoid(dot(m.Weights, X[p])+m.Bias) - y[p]
				for j, v := range X[p] {
					grad[j] += err * v
				}
				gradB += err
			}
			scale := opts.LearningRate / float64(end-start)
			for j := range m.Weights {
				m.Weights[j] -= scale * grad[j]
			}
			m.Bias -= scale * gradB
		}
	}

	return m, nil
}

// PredictProba returns P(y = positive) for one row.
func (m *Model) PredictProba(row records.Record) float64 {
	return sigmoid(dot(m.Weights, m.encode(row)) + m.Bias)
}

// Predict returns the predicted label at the 0.5 threshold.
func (m *Model) Predict(row records.Record) string {
	if m.PredictProba(row) >= 0.5 {
		return m.Positive
	}
	return m.Negative
}

// Evaluate scores the model on ds. Rows without a target label are skipped.
func (m *Model) Evaluate(ds *dataset.Dataset) Metrics {
	var tp, tn, fp, fn float64
	for _, row := range ds.Rows {
		label := row.String(m.Target, "")
		if label == "" {
			continue
		}
		pred := m.Predict(row)
		switch {
		case pred == m.Positive && label == m.Positive:
			tp++
		case pred == m.Positive && label != m.Positive:
			fp++
		case pred != m.Positive && label == m.Positive:
			fn++
		default:
			tn++
		}
	}

	total := tp + tn + fp + fn
	var out Metrics
	if total > 0 {
		out.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		out.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		out.Recall = tp / (tp + fn)
	}
	if out.Precision+out.Recall > 0 {
		out.F1 = 2 * out.Precision * out.Recall / (out.Precision + out.Recall)
	}
	return out
}

// ExportJSON serializes the trained model.
func (m *Model) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ImportJSON restores a model exported by ExportJSON.
func ImportJSON(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("classifier: decode model: %w", err)
	}
	if m.Target == "" || len(m.Weights) == 0 {
		return nil, fmt.Errorf("classifier: model blob is incomplete")
	}
	return &m, nil
}

// encode maps one row into the model's feature vector. Null numeric cells
// encode as the training mean (zero after normalization); unknown
// categories encode as all-zero.
func (m *Model) encode(row records.Record) []float64 {
	width := 0
	for _, f := range m.Features {
		width += f.width()
	}
	out := make([]float64, 0, width)
	for _, f := range m.Features {
		if f.Numeric {
			v := row.Float(f.Column, f.Mean)
			if f.Std > 0 {
				out = append(out, (v-f.Mean)/f.Std)
			} else {
				out = append(out, 0)
			}
			continue
		}
		val := row.String(f.Column, "")
		for _, c := range f.Categories {
			if val == c {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

func fitFeature(ds *dataset.Dataset, col dataset.Column) Feature {
	if col.Kind == dataset.KindInteger || col.Kind == dataset.KindContinuous {
		vals := ds.Floats(col.Name)
		f := Feature{Column: col.Name, Numeric: true}
		if len(vals) > 0 {
			f.Mean = stats.Mean(vals)
			f.Std = stats.Std(vals)
		}
		return f
	}
	return Feature{Column: col.Name, Categories: distinct(ds, col.Name)}
}

func distinct(ds *dataset.Dataset, col string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range ds.Rows {
		v := r.String(col, "")
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func dot(w, x []float64) float64 {
	s := 0.0
	for i := range w {
		s += w[i] * x[i]
	}
	return s
}
