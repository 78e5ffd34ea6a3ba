package mysql

import (
	"context"
	"testing"

	"synthpipe/internal/dataset"
)

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	schema := []dataset.Column{
		{Name: "age", Kind: dataset.KindInteger},
		{Name: "bmi", Kind: dataset.KindContinuous},
		{Name: "sex", Kind: dataset.KindCategorical},
	}
	got := createTableSQL("synthetic", schema)
	want := "CREATE TABLE IF NOT EXISTS `synthetic` (`age` BIGINT, `bmi` DOUBLE, `sex` TEXT)"
	if got != want {
		t.Fatalf("createTableSQL:\n got %s\nwant %s", got, want)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), "", "t"); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
