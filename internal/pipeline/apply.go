// Package pipeline runs a scorer over a dataset and writes the result.
//
// Apply is the batch form of the usual analysis loop: visit every row that
// passes a selection, evaluate the model inputs, score them and commit the
// score next to a set of pass-through columns.
//
//	result, err := pipeline.Apply(ctx, session, model, w, pipeline.Config{
//		Selection:   "B_PT > 2000",
//		Columns:     []string{"B_M", "B_PT"},
//		ScoreColumn: "BDT",
//	}, logger)
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/dataset"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/scorer"
	"github.com/ajitpratap0/strata/pkg/writer"
)

// Config controls one Apply run.
type Config struct {
	// Selection skips rows where it does not hold. Empty keeps every row.
	Selection string
	// Columns are copied from the input row to the output row.
	Columns []string
	// ScoreColumn receives the score. Defaults to the scorer's name.
	ScoreColumn string
	// Iteration options passed to the row iterator.
	Iteration []dataset.IterOption
}

// Result summarizes an Apply run.
type Result struct {
	Visited  int64
	Selected int64
	Written  int64
	Duration time.Duration
}

// Apply scores every selected row of s with sc and commits the rows to w.
// A nil scorer copies the selected rows only. The writer is not closed.
func Apply(ctx context.Context, s *dataset.Session, sc scorer.Scorer, w *writer.Writer, cfg Config, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	columns, err := declareColumns(s, w, cfg.Columns)
	if err != nil {
		return nil, err
	}

	var inputs []string
	scoreColumn := cfg.ScoreColumn
	if sc != nil {
		inputs = sc.Inputs()
		if scoreColumn == "" {
			scoreColumn = sc.Name()
		}
		if err := w.Declare(scoreColumn, writer.Type(columnar.Float32)); err != nil {
			return nil, err
		}
	}

	logger.Info("apply started",
		zap.Strings("columns", columns),
		zap.Strings("inputs", inputs),
		zap.String("selection", cfg.Selection),
		zap.Int64("rows", s.Rows()))

	result := &Result{}
	vector := make([]float64, len(inputs))
	values := make(map[string]any, len(columns)+1)

	for _, err := range s.Entries(ctx, cfg.Iteration...) {
		if err != nil {
			return result, err
		}
		result.Visited++

		if cfg.Selection != "" {
			ok, err := s.Select(ctx, cfg.Selection)
			if err != nil {
				return result, err
			}
			if !ok {
				continue
			}
		}
		result.Selected++

		clear(values)
		for _, name := range columns {
			v, err := s.Read(ctx, name)
			if err != nil {
				return result, err
			}
			values[name] = v
		}
		if sc != nil {
			for i, in := range inputs {
				if vector[i], err = s.Eval(ctx, in); err != nil {
					return result, errors.Wrap(err, errors.TypeOf(err), "cannot evaluate model input").
						WithDetail("input", in)
				}
			}
			score, err := sc.Score(vector)
			if err != nil {
				return result, err
			}
			values[scoreColumn] = score
		}

		if err := w.Commit(values); err != nil {
			return result, err
		}
		result.Written++
	}

	result.Duration = time.Since(start)
	logger.Info("apply finished",
		zap.Int64("visited", result.Visited),
		zap.Int64("selected", result.Selected),
		zap.Int64("written", result.Written),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// declareColumns declares the pass-through columns on w with their input
// shapes. Aliases keep the name they were asked for. Length columns are
// declared before the arrays they size, adding them when they were not asked
// for.
func declareColumns(s *dataset.Session, w *writer.Writer, names []string) ([]string, error) {
	var order []string
	seen := make(map[string]bool)

	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		decl, ok := s.Declaration(name)
		if !ok {
			return errors.UnknownColumn(name)
		}
		if decl.LengthColumn != "" {
			if err := visit(decl.LengthColumn); err != nil {
				return err
			}
		}
		opts := []writer.ColumnOption{writer.Type(decl.Type), writer.Arity(decl.Arity)}
		if decl.LengthColumn != "" {
			opts = append(opts, writer.LengthFrom(decl.LengthColumn))
		}
		if err := w.Declare(name, opts...); err != nil {
			return err
		}
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
