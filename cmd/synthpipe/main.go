package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"synthpipe/internal/config"
	"synthpipe/internal/dag"
	"synthpipe/internal/datasource"
	"synthpipe/internal/eval"
	"synthpipe/internal/generator"
	"synthpipe/internal/metrics"
	"synthpipe/internal/metrics/datadog"
	"synthpipe/internal/metrics/prompush"
	"synthpipe/internal/runner"
	"synthpipe/internal/storage"

	// register all generators, sinks, and source kinds with their
	// factories; the config selects which to use at runtime.
	_ "synthpipe/internal/datasource/file"
	_ "synthpipe/internal/datasource/httpds"
	_ "synthpipe/internal/generator/all"
	_ "synthpipe/internal/parser/csv"
	_ "synthpipe/internal/storage/all"
)

// main loads a run config, optionally initializes a metrics backend, and
// executes the synthesis run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
		list              bool
	)

	flag.StringVar(&cfgPath, "config", "configs/runs/sample.json", "run config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "dogstatsd address (overrides env DD_AGENT_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&list, "list", false, "list registered sources, generators, sinks, and metric groups, then exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if list {
		fmt.Printf("sources:       %v\n", datasource.Kinds())
		fmt.Printf("generators:    %v\n", generator.ListKinds())
		fmt.Printf("sinks:         %v\n", storage.ListKinds())
		fmt.Printf("metric groups: %v\n", eval.ListGroups())
		return
	}

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var run config.Run
	if err := json.NewDecoder(f).Decode(&run); err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.ValidateRun(run)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		return
	}

	// Decide metrics backend: flag, then env, then default off.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		jobName := run.Job
		if jobName == "" {
			jobName = "synthpipe"
		}
		b, err := prompush.New(gwURL, jobName)
		if err != nil {
			log.Printf("metrics: init pushgateway backend: %v; metrics disabled", err)
		} else {
			if *verbose {
				log.Printf("metrics: backend=pushgateway url=%s job=%s", gwURL, jobName)
			}
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush: %v", err)
				}
			}()
		}

	case "datadog":
		addr := statsdAddrFlg
		if addr == "" {
			addr = os.Getenv("DD_AGENT_ADDR")
		}
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.New(datadog.Config{Addr: addr, Namespace: "synthpipe."})
		if err != nil {
			log.Printf("metrics: init datadog backend: %v; metrics disabled", err)
		} else {
			if *verbose {
				log.Printf("metrics: backend=datadog addr=%s", addr)
			}
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled")
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	if *verbose {
		log.Printf("run: source=%s parser=%s generator=%s sink=%s",
			run.Source.Kind, run.Parser.Kind, run.Generator.Kind, run.Output.Kind)
		if dot := dagDOT(run.Generator); dot != "" {
			log.Printf("generator dag:\n%s", dot)
		}
	}

	out, err := runner.New(run).Run(context.Background())
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Print(out.Report)
}

// dagDOT renders the generator's DAG as graphviz DOT when the config
// carries one, with suppressed edges already removed.
func dagDOT(spec config.Generator) string {
	pairs := spec.Options.PairSlice("dag")
	if len(pairs) == 0 {
		return ""
	}
	edges := make([]dag.Edge, len(pairs))
	for i, p := range pairs {
		edges[i] = dag.Edge{From: p[0], To: p[1]}
	}
	g, err := dag.FromEdges(edges)
	if err != nil {
		return ""
	}
	for _, p := range spec.Options.PairSlice("suppress") {
		g.Suppress(p[0], p[1])
	}
	return g.DOT()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
