package dataset

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/strata/pkg/store/parquet"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

// ParquetSuite reads datasets written to real parquet files.
type ParquetSuite struct {
	testutil.DatasetSuite
	backend *parquet.Backend
	paths   []string
}

func TestParquetSuite(t *testing.T) {
	suite.Run(t, new(ParquetSuite))
}

func (s *ParquetSuite) SetupSuite() {
	s.DatasetSuite.SetupSuite()
	s.backend = parquet.New(parquet.WithRowGroupLength(2))

	decls := []string{"x/D", "n/I", "y[n]/F"}
	s.paths = []string{s.Path("part-0.parquet"), s.Path("part-1.parquet")}
	s.Commit(s.backend, s.paths[0], testutil.Table(s.T(), "DecayTree", decls,
		testutil.Row{"x": {1}, "n": {2}, "y": {2, 3}},
		testutil.Row{"x": {4}, "n": {1}, "y": {5}},
		testutil.Row{"x": {6}, "n": {0}},
	))
	s.Commit(s.backend, s.paths[1], testutil.Table(s.T(), "DecayTree", decls,
		testutil.Row{"x": {7}, "n": {3}, "y": {8, 9, 10}},
		testutil.Row{"x": {11}, "n": {1}, "y": {12}},
	))
	s.Commit(s.backend, s.Path("weights.parquet"), testutil.Table(s.T(), "Weights", []string{"w/F"},
		testutil.Scalars("w", 0.5, 1, 1.5, 2, 2.5)...,
	))
}

func (s *ParquetSuite) open() *Session {
	sess, err := Open(s.Context(), s.backend, "DecayTree", s.paths, WithLogger(s.Logger()))
	s.Require().NoError(err)
	s.T().Cleanup(func() { sess.Close() })
	return sess
}

func (s *ParquetSuite) TestReadBack() {
	sess := s.open()
	ctx := s.Context()
	s.Equal(int64(5), sess.Rows())

	span, ok := sess.Chain().Locate(s.paths[1])
	s.Require().True(ok)
	s.Equal(FileSpan{Path: s.paths[1], Start: 3, Rows: 2}, span)

	wantX := []float64{1, 4, 6, 7, 11}
	wantY := [][]float64{{2, 3}, {5}, {}, {8, 9, 10}, {12}}
	for row, err := range sess.Entries(ctx, Quiet()) {
		s.Require().NoError(err)

		x, err := sess.Eval(ctx, "x")
		s.Require().NoError(err)
		s.Equal(wantX[row], x)

		y, err := sess.Read(ctx, "y")
		s.Require().NoError(err)
		s.Require().Equal(len(wantY[row]), y.Len())
		if y.Len() > 0 {
			s.Equal(wantY[row], y.Float64s())
		}
	}
}

func (s *ParquetSuite) TestFormulasOverFiles() {
	sess := s.open()
	ctx := s.Context()

	n, err := sess.Count(ctx, "n > 0 && y[0] > 4")
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	hi, err := sess.Maximum(ctx, "y")
	s.Require().NoError(err)
	s.Equal(12.0, hi)
}

func (s *ParquetSuite) TestFriendFile() {
	sess := s.open()
	ctx := s.Context()

	friend := NewChain("Weights", s.backend, WithLogger(s.Logger()))
	s.Require().NoError(friend.AddFile(ctx, s.Path("weights.parquet")))
	s.Require().NoError(sess.Chain().AddFriend(friend))
	defer friend.Close()

	var sum float64
	for _, err := range sess.Entries(ctx, Quiet(), Eager()) {
		s.Require().NoError(err)
		v, err := sess.Eval(ctx, "x * w")
		s.Require().NoError(err)
		sum += v
	}
	s.InDelta(0.5+4+9+14+27.5, sum, 1e-9)
}
