// Package config provides configuration models and helpers for synthesis runs.
//
// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Run.
//
// Path is a dotted path into the config (e.g. "output.kind",
// "loader.time_to_event"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateRun performs static validation / linting of a Run.
//
// It does not mutate the run. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	var r config.Run
//	if err := json.NewDecoder(f).Decode(&r); err != nil { ... }
//	issues := config.ValidateRun(r)
//	for _, iss := range issues {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(r.Source)...)
	issues = append(issues, validateParser(r.Parser)...)
	issues = append(issues, validateLoader(r.Loader)...)
	issues = append(issues, validateGenerator(r.Generator)...)
	issues = append(issues, validateGenerate(r.Generate, r.Loader)...)
	issues = append(issues, validateEvaluate(r.Evaluate, r.Loader)...)
	issues = append(issues, validateOutput(r.Output)...)
	issues = append(issues, validateRuntime(r.Runtime)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	// Known source kinds. Unknown kinds are warnings (for forward compatibility).
	known := map[string]struct{}{
		"file": {},
		"http": {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching implementation exists", s.Kind),
		})
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  "http source requires a non-empty url",
			})
		}
	}

	return issues
}

// validateParser validates parser configuration.
func validateParser(p Parser) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  "parser.kind must not be empty",
		})
		return issues
	}
	if p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; only \"csv\" ships with this binary", p.Kind),
		})
	}
	return issues
}

// validateLoader validates loader metadata. Column existence can only be
// checked after parsing, so this stage checks internal consistency only.
func validateLoader(l Loader) []Issue {
	var issues []Issue

	if (l.TimeToEvent == "") != (l.Event == "") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.time_to_event",
			Message:  "time_to_event and event must both be set or both be empty",
		})
	}

	if l.Temporal != nil {
		if l.Temporal.ID == "" || l.Temporal.Time == "" || len(l.Temporal.Features) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "loader.temporal",
				Message:  "temporal block requires id, time, and at least one feature column",
			})
		}
	}

	validKinds := map[string]struct{}{
		"categorical": {}, "integer": {}, "continuous": {}, "datetime": {},
	}
	for col, kind := range l.Types {
		if _, ok := validKinds[kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "loader.types." + col,
				Message:  fmt.Sprintf("unknown column kind %q", kind),
			})
		}
	}

	return issues
}

// validateGenerator validates generator selection without resolving the kind
// against the registry (the registry lives above this package; the CLI checks
// registration at startup).
func validateGenerator(g Generator) []Issue {
	var issues []Issue

	if strings.TrimSpace(g.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generator.kind",
			Message:  "generator.kind must not be empty",
		})
	}
	if eps := g.Options.Float("epsilon", 0); eps < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generator.options.epsilon",
			Message:  "epsilon must be >= 0",
		})
	}
	for i, pair := range g.Options.PairSlice("suppress") {
		if pair[0] == "" || pair[1] == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("generator.options.suppress[%d]", i),
				Message:  "suppress entries must be [from, to] column pairs",
			})
		}
	}
	return issues
}

// validateGenerate checks the sampling request against the loader metadata.
func validateGenerate(g Generate, l Loader) []Issue {
	var issues []Issue

	if g.Count < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "generate.count",
			Message:  "count must be >= 0 (0 means match the real row count)",
		})
	}

	// Conditions on the declared domain column are the expected use; other
	// columns still work but are worth flagging.
	for col := range g.Conditions {
		if l.Domain != "" && col != l.Domain {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "generate.conditions." + col,
				Message:  fmt.Sprintf("condition column differs from loader.domain (%q)", l.Domain),
			})
		}
	}
	return issues
}

// validateEvaluate checks metric group names and the holdout fraction.
func validateEvaluate(e Evaluate, l Loader) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"fidelity": {}, "privacy": {}, "utility": {}, "fairness": {}, "augment": {},
	}
	for i, m := range e.Metrics {
		if _, ok := known[m]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("evaluate.metrics[%d]", i),
				Message:  fmt.Sprintf("unknown metric group %q", m),
			})
			continue
		}
		if (m == "utility" || m == "fairness" || m == "augment") && l.Target == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("evaluate.metrics[%d]", i),
				Message:  fmt.Sprintf("%s metrics require loader.target", m),
			})
		}
		if m == "fairness" && len(l.Sensitive) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("evaluate.metrics[%d]", i),
				Message:  "fairness metrics require at least one loader.sensitive column",
			})
		}
	}

	if e.ExportModel != "" && l.Target == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "evaluate.export_model",
			Message:  "export_model requires loader.target",
		})
	}

	if e.Holdout != 0 && (e.Holdout <= 0 || e.Holdout >= 1) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "evaluate.holdout",
			Message:  "holdout must be in (0,1); 0 selects the default",
		})
	}
	return issues
}

// validateOutput validates the sink configuration.
func validateOutput(o Output) []Issue {
	var issues []Issue

	if strings.TrimSpace(o.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.kind",
			Message:  "output.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"csvfile": {}, "sqlite": {}, "postgres": {}, "mysql": {},
	}
	if _, ok := known[o.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output.kind",
			Message:  fmt.Sprintf("unknown output kind %q; ensure a matching backend is registered", o.Kind),
		})
	}

	switch o.Kind {
	case "csvfile":
		if strings.TrimSpace(o.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.path",
				Message:  "csvfile output requires a non-empty path",
			})
		}
	case "sqlite", "postgres", "mysql":
		if strings.TrimSpace(o.DB.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.db.dsn",
				Message:  fmt.Sprintf("%s output requires a non-empty dsn", o.Kind),
			})
		}
		if strings.TrimSpace(o.DB.Table) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "output.db.table",
				Message:  fmt.Sprintf("%s output requires a non-empty table", o.Kind),
			})
		}
	}
	return issues
}

// validateRuntime sanity-checks concurrency settings. Zero values mean
// "use defaults" and are fine; negatives are configuration mistakes.
func validateRuntime(rt RuntimeConfig) []Issue {
	var issues []Issue

	checks := []struct {
		name string
		v    int
	}{
		{"runtime.generate_workers", rt.GenerateWorkers},
		{"runtime.batch_size", rt.BatchSize},
		{"runtime.channel_buffer", rt.ChannelBuffer},
	}
	for _, c := range checks {
		if c.v < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     c.name,
				Message:  "must be >= 0 (0 selects the default)",
			})
		}
	}
	if rt.BatchSize > 0 && rt.BatchSize < 10 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  "very small batch sizes hurt sink throughput",
		})
	}
	return issues
}

// HasErrors reports whether any issue carries error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
