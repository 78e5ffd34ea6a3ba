package storage

import (
	"context"
	"fmt"

	"synthpipe/pkg/records"
)

// LoadBatches consumes records from in, builds [][]any batches aligned to
// columns, and flushes each full batch through repo.CopyFrom. The final
// partial batch flushes on channel close. Returns the total inserted count.
func LoadBatches(
	ctx context.Context,
	repo Repository,
	columns []string,
	in <-chan records.Record,
	batchSize int,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}

	var total int64
	batch := make([][]any, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := repo.CopyFrom(ctx, columns, batch)
		total += n
		batch = batch[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case rec, ok := <-in:
			if !ok {
				return total, flush()
			}
			row := make([]any, len(columns))
			for i, c := range columns {
				row[i] = rec[c]
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
