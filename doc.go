// Package strata reads and writes row-oriented analysis datasets stored in
// columnar files.
//
// A logical dataset is a sequence of rows spread over several files that
// share a schema. Strata visits those rows one at a time, decodes only the
// columns a loop actually touches and writes derived columns back, either
// as new datasets or next to the rows of an existing one.
//
// # Architecture
//
//   - pkg/store: the backing store interfaces, with parquet (arrow-go) and
//     in-memory implementations.
//   - pkg/columnar: element type codes, declaration strings such as
//     "track_PT[nTracks]/F", typed buffers and read-only values.
//   - pkg/dataset: the file chain, the lazy column cache, aliases, formulas
//     and the row iterator with progress reporting.
//   - pkg/formula: the expression language used for selections and derived
//     quantities.
//   - pkg/writer: declared output columns filled row by row in unified or
//     independent commit mode.
//   - pkg/scorer and internal/pipeline: apply a model to every selected row.
//
// # Quick Start
//
// Count the rows passing a selection:
//
//	s, err := dataset.Open(ctx, parquet.New(), "DecayTree", []string{"run1.parquet", "run2.parquet"})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	n, err := s.Count(ctx, "B_PT > 2000 && nTracks > 1")
//
// Visit every row and write a derived column:
//
//	w, err := writer.New(ctx, backend, "derived.parquet", "DecayTree", writer.WithColumns("pt_GeV/F"))
//	for _, err := range s.Entries(ctx, dataset.PrintEvery(10000)) {
//		if err != nil {
//			return err
//		}
//		pt, err := s.Eval(ctx, "B_PT / 1000")
//		...
//		w.Commit(map[string]any{"pt_GeV": pt})
//	}
//	err = w.Close()
//
// # Command Line
//
// The strata command wraps the same operations:
//
//	strata columns -d DecayTree run1.parquet
//	strata count -d DecayTree -s "B_PT > 2000" run*.parquet
//	strata apply -d DecayTree --model bdt.json --output scored.parquet run*.parquet
//
// # Observability
//
// Logging uses zap through pkg/logger, counters and histograms are exported
// to Prometheus by pkg/metrics and spans are recorded with OpenTelemetry by
// pkg/observability.
package strata
