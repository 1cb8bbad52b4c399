// Command benchmark measures row iteration throughput over a synthetic
// parquet dataset.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/ajitpratap0/strata/pkg/dataset"
	"github.com/ajitpratap0/strata/pkg/json"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/store/parquet"
	"github.com/ajitpratap0/strata/pkg/writer"
)

var (
	rows       = flag.Int64("rows", 1_000_000, "Rows per generated file")
	files      = flag.Int("files", 2, "Number of generated files")
	tracks     = flag.Int("tracks", 8, "Maximum elements of the generated array column")
	iterations = flag.Int("count", 3, "Iterations per scenario")
	outputDir  = flag.String("output", "benchmark-results", "Output directory for data and results")
	cpuFile    = flag.String("cpuprofile", "", "Write CPU profile to file")
	memFile    = flag.String("memprofile", "", "Write memory profile to file")
)

// scenario is one way of visiting every row.
type scenario struct {
	Name  string
	Eager bool
	Visit func(ctx context.Context, s *dataset.Session) error
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario      string  `json:"scenario"`
	Rows          int64   `json:"rows"`
	Iterations    int     `json:"iterations"`
	BestSeconds   float64 `json:"best_seconds"`
	RowsPerSecond float64 `json:"rows_per_second"`
	RSSBytes      uint64  `json:"rss_bytes"`
}

var scenarios = []scenario{
	{Name: "scalar column", Visit: read("B_PT")},
	{Name: "array column", Visit: read("track_PT")},
	{Name: "selection", Visit: func(ctx context.Context, s *dataset.Session) error {
		_, err := s.Select(ctx, "B_PT > 2000 && nTracks > 3 && track_PT[0] > 500")
		return err
	}},
	{Name: "eager", Eager: true, Visit: func(context.Context, *dataset.Session) error { return nil }},
}

func read(name string) func(ctx context.Context, s *dataset.Session) error {
	return func(ctx context.Context, s *dataset.Session) error {
		_, err := s.Read(ctx, name)
		return err
	}
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	ctx := context.Background()
	backend := parquet.New()

	fmt.Println("=== Strata Row Iteration Benchmark ===")
	fmt.Printf("Files: %d x %d rows, up to %d array elements\n\n", *files, *rows, *tracks)

	paths, err := generate(ctx, backend)
	if err != nil {
		return err
	}

	if *cpuFile != "" {
		f, err := os.Create(*cpuFile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	var results []Result
	for _, sc := range scenarios {
		r, err := measure(ctx, backend, paths, sc)
		if err != nil {
			return fmt.Errorf("%s: %w", sc.Name, err)
		}
		fmt.Printf("  %-14s %12.0f rows/sec  (best of %d: %.3fs)\n", r.Scenario, r.RowsPerSecond, r.Iterations, r.BestSeconds)
		results = append(results, r)
	}

	if *memFile != "" {
		f, err := os.Create(*memFile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	report := filepath.Join(*outputDir, fmt.Sprintf("report_%s.json", time.Now().Format("20060102-150405")))
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(report, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to save report: %w", err)
	}
	fmt.Printf("\nBenchmark results saved to: %s\n", report)
	return nil
}

// generate writes the synthetic input files.
func generate(ctx context.Context, backend *parquet.Backend) ([]string, error) {
	rng := rand.New(rand.NewPCG(1, 2))
	var paths []string
	for i := range *files {
		path := filepath.Join(*outputDir, fmt.Sprintf("events-%d.parquet", i))
		w, err := writer.New(ctx, backend, path, "DecayTree",
			writer.WithColumns("B_PT/D", "B_M/F", "nTracks/I", "track_PT[nTracks]/F"))
		if err != nil {
			return nil, err
		}
		pt := make([]float64, *tracks)
		for range *rows {
			n := rng.IntN(*tracks + 1)
			for j := range n {
				pt[j] = rng.ExpFloat64() * 1000
			}
			err := w.Commit(map[string]any{
				"B_PT":     rng.ExpFloat64() * 3000,
				"B_M":      5279 + rng.NormFloat64()*20,
				"nTracks":  n,
				"track_PT": pt[:n],
			})
			if err != nil {
				return nil, err
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func measure(ctx context.Context, backend *parquet.Backend, paths []string, sc scenario) (Result, error) {
	r := Result{Scenario: sc.Name, Iterations: *iterations}
	for range *iterations {
		s, err := dataset.Open(ctx, backend, "DecayTree", paths)
		if err != nil {
			return r, err
		}
		opts := []dataset.IterOption{dataset.Quiet()}
		if sc.Eager {
			opts = append(opts, dataset.Eager())
		}

		timer := metrics.NewTimer(sc.Name)
		for _, err := range s.Entries(ctx, opts...) {
			if err == nil {
				err = sc.Visit(ctx, s)
			}
			if err != nil {
				s.Close()
				return r, err
			}
		}
		elapsed := timer.Stop().Seconds()
		r.Rows = s.Rows()
		if err := s.Close(); err != nil {
			return r, err
		}

		if r.BestSeconds == 0 || elapsed < r.BestSeconds {
			r.BestSeconds = elapsed
		}
	}
	if r.BestSeconds > 0 {
		r.RowsPerSecond = float64(r.Rows) / r.BestSeconds
	}
	if mem, err := metrics.ProcessMemory(); err == nil {
		r.RSSBytes = mem.RSS
	}
	return r, nil
}
