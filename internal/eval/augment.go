package eval

import (
	"context"
	"fmt"

	"synthpipe/internal/classifier"
	"synthpipe/pkg/records"
)

// augmentShare is the fraction of the train split used as the "small real"
// dataset the augmentation comparison starts from.
const augmentShare = 0.25

func init() {
	Register("augment", augmentGroup)
}

// augmentGroup measures whether synthetic rows help a data-poor consumer:
// it trains one classifier on a small slice of the real train split and
// another on that same slice plus the synthetic rows, and scores both on
// the holdout.
//
//	augment.baseline_accuracy   trained on the small real slice
//	augment.augmented_accuracy  trained on small real + synthetic
func augmentGroup(ctx context.Context, in Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := in.Meta.Target
	if target == "" {
		return nil, fmt.Errorf("augment metrics need loader.target")
	}

	n := int(float64(in.Train.Len()) * augmentShare)
	if n < 2 {
		n = in.Train.Len()
	}
	small := in.Train.WithRows(in.Train.Rows[:n])

	combined := make([]records.Record, 0, n+in.Synth.Len())
	combined = append(combined, small.Rows...)
	combined = append(combined, in.Synth.Rows...)
	augmented := in.Train.WithRows(combined)

	opts := classifier.Options{Seed: in.Seed}

	baseModel, err := classifier.Train(small, target, opts)
	if err != nil {
		return nil, fmt.Errorf("train on small real: %w", err)
	}
	augModel, err := classifier.Train(augmented, target, opts)
	if err != nil {
		return nil, fmt.Errorf("train on augmented: %w", err)
	}

	base := baseModel.Evaluate(in.Holdout)
	aug := augModel.Evaluate(in.Holdout)

	return []Score{
		{Metric: "augment.baseline_accuracy", Value: base.Accuracy, Direction: Maximize},
		{Metric: "augment.baseline_f1", Value: base.F1, Direction: Maximize},
		{Metric: "augment.augmented_accuracy", Value: aug.Accuracy, Direction: Maximize},
		{Metric: "augment.augmented_f1", Value: aug.F1, Direction: Maximize},
	}, nil
}
