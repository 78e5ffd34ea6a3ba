package eval

import (
	"context"
	"fmt"

	"synthpipe/internal/classifier"
)

func init() {
	Register("utility", utilityGroup)
}

// utilityGroup runs the TSTR protocol: train a classifier on synthetic
// data, test on the real holdout, and report the same scores for a
// train-on-real baseline so the gap is visible.
//
//	tstr_accuracy / tstr_f1  trained on synthetic, tested on holdout
//	trtr_accuracy / trtr_f1  trained on real train split, tested on holdout
func utilityGroup(ctx context.Context, in Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := in.Meta.Target
	if target == "" {
		return nil, fmt.Errorf("utility metrics need loader.target")
	}

	opts := classifier.Options{Seed: in.Seed}

	synthModel, err := classifier.Train(in.Synth, target, opts)
	if err != nil {
		return nil, fmt.Errorf("train on synthetic: %w", err)
	}
	realModel, err := classifier.Train(in.Train, target, opts)
	if err != nil {
		return nil, fmt.Errorf("train on real: %w", err)
	}

	tstr := synthModel.Evaluate(in.Holdout)
	trtr := realModel.Evaluate(in.Holdout)

	return []Score{
		{Metric: "utility.tstr_accuracy", Value: tstr.Accuracy, Direction: Maximize},
		{Metric: "utility.tstr_f1", Value: tstr.F1, Direction: Maximize},
		{Metric: "utility.trtr_accuracy", Value: trtr.Accuracy, Direction: Maximize},
		{Metric: "utility.trtr_f1", Value: trtr.F1, Direction: Maximize},
	}, nil
}
