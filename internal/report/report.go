// Package report renders run results for humans. Output is plain text
// written to an io.Writer so the CLI can print to stdout and tests can
// capture it.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"synthpipe/internal/eval"
)

// Summary holds the end-of-run counters the runner accumulates.
type Summary struct {
	RunID     string
	Job       string
	Rows      int64
	Skipped   int64
	Sequences int64
	Generated int64
	Inserted  int64
	Batches   int64
	CacheHit  bool
	Elapsed   time.Duration
}

// WriteSummary renders the run counters as "key: value" lines with
// humanized row counts.
func WriteSummary(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "run:\t%s\n", s.RunID)
	fmt.Fprintf(tw, "job:\t%s\n", s.Job)
	fmt.Fprintf(tw, "rows loaded:\t%s\n", humanize.Comma(s.Rows))
	if s.Skipped > 0 {
		fmt.Fprintf(tw, "rows skipped:\t%s\n", humanize.Comma(s.Skipped))
	}
	if s.Sequences > 0 {
		fmt.Fprintf(tw, "sequences:\t%s\n", humanize.Comma(s.Sequences))
	}
	fmt.Fprintf(tw, "rows generated:\t%s\n", humanize.Comma(s.Generated))
	fmt.Fprintf(tw, "rows inserted:\t%s\n", humanize.Comma(s.Inserted))
	fmt.Fprintf(tw, "batches:\t%s\n", humanize.Comma(s.Batches))
	if s.CacheHit {
		fmt.Fprintf(tw, "fit:\tcache hit\n")
	} else {
		fmt.Fprintf(tw, "fit:\tfresh\n")
	}
	fmt.Fprintf(tw, "elapsed:\t%s\n", s.Elapsed.Round(time.Millisecond))

	return tw.Flush()
}

// WriteScores renders the evaluation result as an aligned table. A nil or
// empty result prints a single line noting evaluation was skipped.
func WriteScores(w io.Writer, res eval.Result) error {
	if len(res.Scores) == 0 {
		_, err := fmt.Fprintln(w, "evaluation: skipped")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE\tDIRECTION")
	for _, s := range res.Scores {
		fmt.Fprintf(tw, "%s\t%.4f\t%s\n", s.Metric, s.Value, s.Direction)
	}
	return tw.Flush()
}

// Render produces the complete report text: scores followed by the run
// summary, separated by a rule.
func Render(res eval.Result, s Summary) (string, error) {
	var b strings.Builder
	if err := WriteScores(&b, res); err != nil {
		return "", err
	}
	b.WriteString(strings.Repeat("-", 40))
	b.WriteString("\n")
	if err := WriteSummary(&b, s); err != nil {
		return "", err
	}
	return b.String(), nil
}
