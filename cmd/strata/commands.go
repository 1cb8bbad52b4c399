package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/dataset"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/json"
	"github.com/ajitpratap0/strata/pkg/scorer"
	"github.com/ajitpratap0/strata/pkg/store"
	"github.com/ajitpratap0/strata/pkg/writer"
)

func newColumnsCommand(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "columns [files...]",
		Short: "List the column declarations of a dataset",
		Example: `  strata columns -d DecayTree run1.parquet run2.parquet
  strata columns --search PT s3://bucket/run1.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args)
			if err != nil {
				return err
			}
			defer s.Close()

			names := s.ListColumns()
			if search != "" {
				names = s.SearchColumns(search)
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				decl, _ := s.Chain().Column(name)
				fmt.Fprintln(out, decl.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Only list columns whose name contains this text")
	return cmd
}

func newCountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "count [files...]",
		Short:   "Count the rows of a dataset, optionally under a selection",
		Example: `  strata count -d DecayTree -s "B_PT > 2000 && nTracks > 1" run*.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Count(a.ctx, a.cfg.Reader.Selection)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newMinMaxCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "minmax <column or formula> [files...]",
		Short:   "Print the smallest and largest value of a column or formula",
		Example: `  strata minmax -d DecayTree "B_PT / 1000" run1.parquet`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args[1:])
			if err != nil {
				return err
			}
			defer s.Close()

			lo, hi, err := s.Extrema(a.ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", formatFloat(lo), formatFloat(hi))
			return nil
		},
	}
}

func newScanCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan [files...]",
		Short: "Print selected columns row by row",
		Example: `  strata scan -d DecayTree --columns B_PT,nTracks -s "B_PT > 2000" run1.parquet
  strata scan -d DecayTree --columns "B_PT / 1000" --json --limit 100 run1.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args)
			if err != nil {
				return err
			}
			defer s.Close()

			columns := a.v.GetStringSlice("columns")
			if len(columns) == 0 {
				columns = s.ListColumns()
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return scanJSON(a, s, columns, out)
			}
			return scanText(a, s, columns, out)
		},
	}
	cmd.Flags().StringSlice("columns", nil, "Columns or formulas to print; all columns by default")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per row")
	return cmd
}

// visit calls fn with the current row index for every selected row.
func visit(a *app, s *dataset.Session, fn func(row int64) error) error {
	selection := a.cfg.Reader.Selection
	for row, err := range s.Entries(a.ctx, a.iteration()...) {
		if err != nil {
			return err
		}
		if selection != "" {
			ok, err := s.Select(a.ctx, selection)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func scanText(a *app, s *dataset.Session, columns []string, out io.Writer) error {
	return visit(a, s, func(row int64) error {
		fmt.Fprintf(out, "%d", row)
		for _, name := range columns {
			v, err := s.Get(a.ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\t%s=%s", name, formatValue(v))
		}
		fmt.Fprintln(out)
		return nil
	})
}

func scanJSON(a *app, s *dataset.Session, columns []string, out io.Writer) error {
	enc, err := json.NewStreamingEncoder(out, false)
	if err != nil {
		return err
	}
	record := make(map[string]any, len(columns)+1)
	err = visit(a, s, func(row int64) error {
		clear(record)
		record["entry"] = row
		for _, name := range columns {
			v, err := s.Get(a.ctx, name)
			if err != nil {
				return err
			}
			if v.IsArray() {
				record[name] = v.Float64s()
			} else if v.Len() > 0 {
				record[name] = v.Float64()
			}
		}
		return enc.Encode(record)
	})
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	return err
}

func formatValue(v columnar.Value) string {
	if !v.IsArray() {
		if v.Len() == 0 {
			return ""
		}
		return formatFloat(v.Float64())
	}
	buf := []byte{'['}
	for i := range v.Len() {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendFloat(buf, v.At(i), 'g', -1, 64)
	}
	return string(append(buf, ']'))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func newApplyCommand(a *app) *cobra.Command {
	var modelPath, scoreColumn string
	cmd := &cobra.Command{
		Use:   "apply [files...]",
		Short: "Score every selected row with a model and write the result",
		Long: `Apply evaluates the model's input formulas on every selected row, scores them and
writes the score together with the pass-through columns to the output dataset.

With --mode extend the score is added as a new column next to the rows already in the
output, which must then hold exactly one row per selected input row.`,
		Example: `  strata apply -d DecayTree --model bdt.json --output scored.parquet \
    --columns B_M,B_PT -s "B_PT > 2000" run1.parquet run2.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" && len(a.cfg.Writer.Columns) == 0 {
				return errors.New(errors.ErrorTypeConfig, "nothing to write; pass --model or --columns")
			}
			out := a.cfg.Writer.Path
			if out == "" {
				return errors.New(errors.ErrorTypeConfig, "no output; pass --output or set writer.path")
			}

			var model scorer.Scorer
			if modelPath != "" {
				m, err := scorer.LoadLinear(modelPath)
				if err != nil {
					return err
				}
				model = m
			}

			s, err := a.open(args)
			if err != nil {
				return err
			}
			defer s.Close()

			w, err := a.writer(out)
			if err != nil {
				return err
			}

			result, err := pipeline.Apply(a.ctx, s, model, w, pipeline.Config{
				Selection:   a.cfg.Reader.Selection,
				Columns:     a.cfg.Writer.Columns,
				ScoreColumn: scoreColumn,
				Iteration:   a.iteration(),
			}, a.logger)
			if err != nil {
				// The writer is not closed so the output stays untouched.
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}

			a.logger.Info("apply completed",
				zap.String("output", out),
				zap.Int64("selected", result.Selected),
				zap.Int64("written", result.Written),
				zap.Int("diagnostics", w.Diagnostics()),
				zap.Float64("rows_per_second", float64(result.Visited)/max(result.Duration.Seconds(), 1e-9)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&modelPath, "model", "m", "", "Path to a JSON linear model")
	f.StringVar(&scoreColumn, "score-column", "", "Output column for the score; defaults to the model name")
	f.StringP("output", "o", "", "Output file or s3:// / gs:// object")
	f.String("mode", "", "Output mode: create, append or extend")
	f.String("commit", "", "Commit mode: unified or independent; chosen by mode when empty")
	f.String("compression", "", "Parquet compression codec")
	f.StringSlice("columns", nil, "Input columns copied to the output")
	return cmd
}

// writer opens the output with the writer settings.
func (a *app) writer(path string) (*writer.Writer, error) {
	mode, err := store.ParseWriteMode(a.cfg.Writer.Mode)
	if err != nil {
		return nil, err
	}
	opts := []writer.Option{writer.WithMode(mode), writer.WithLogger(a.logger)}
	switch strings.ToLower(a.cfg.Writer.Commit) {
	case "unified":
		opts = append(opts, writer.WithCommit(writer.Unified))
	case "independent":
		opts = append(opts, writer.WithCommit(writer.Independent))
	}
	return writer.New(a.ctx, a.backend, path, a.cfg.OutputDataset(), opts...)
}
