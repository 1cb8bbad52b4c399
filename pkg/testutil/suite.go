package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/strata/pkg/store"
)

// DatasetSuite provides a context, a scratch directory and a logger to suites
// that write real dataset files.
type DatasetSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *DatasetSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "strata-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *DatasetSuite) TearDownSuite() {
	s.cancel()
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *DatasetSuite) Context() context.Context {
	return s.ctx
}

// Path returns a path inside the suite's scratch directory.
func (s *DatasetSuite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// Logger returns a logger writing to the current test's output.
func (s *DatasetSuite) Logger() *zap.Logger {
	return zaptest.NewLogger(s.T())
}

// Commit writes tbl through backend at path, creating or replacing it.
func (s *DatasetSuite) Commit(backend store.Backend, path string, tbl *store.Table) {
	sink, err := backend.Create(s.ctx, path, tbl.Dataset(), store.Create)
	s.Require().NoError(err)

	staging, ok := sink.(*store.StagingSink)
	s.Require().True(ok, "backend sink does not stage in a table")
	for _, d := range tbl.Columns() {
		_, err := staging.Declare(d)
		s.Require().NoError(err)
	}
	copyRows(staging.Table(), tbl)
	s.Require().NoError(sink.Close())
}

func copyRows(dst, src *store.Table) {
	for _, d := range src.Columns() {
		from, _ := src.Column(d.Name)
		to, _ := dst.Column(d.Name)
		vals := from.Values()
		for r := int64(0); r < from.Rows(); r++ {
			start, end := from.Row(r)
			row := make([]float64, 0, end-start)
			for i := start; i < end; i++ {
				row = append(row, vals.Float64(i))
			}
			to.AppendFloat64s(row...)
		}
	}
}
