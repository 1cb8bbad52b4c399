package json

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Entry int64              `json:"entry"`
	Cols  map[string]float64 `json:"columns"`
}

func TestStreamingEncoderLines(t *testing.T) {
	var out bytes.Buffer
	enc, err := NewStreamingEncoder(&out, false)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(row{Entry: 0, Cols: map[string]float64{"x": 1}}))
	require.NoError(t, enc.Encode(row{Entry: 1, Cols: map[string]float64{"x": 2.5}}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "{\"entry\":0,\"columns\":{\"x\":1}}\n{\"entry\":1,\"columns\":{\"x\":2.5}}\n", out.String())
}

func TestStreamingEncoderArray(t *testing.T) {
	var out bytes.Buffer
	enc, err := NewStreamingEncoder(&out, true)
	require.NoError(t, err)
	for i := range 3 {
		require.NoError(t, enc.Encode(map[string]int{"i": i}))
	}
	require.NoError(t, enc.Close())
	assert.Equal(t, "[{\"i\":0},{\"i\":1},{\"i\":2}]\n", out.String())

	var decoded []map[string]int
	require.NoError(t, Unmarshal(out.Bytes(), &decoded))
	assert.Len(t, decoded, 3)
}

func TestStreamingEncoderEmptyArray(t *testing.T) {
	var out bytes.Buffer
	enc, err := NewStreamingEncoder(&out, true)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	assert.Equal(t, "[]\n", out.String())
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	var r row
	require.NoError(t, Decode(strings.NewReader(`{"entry": 3}`), &r))
	assert.Equal(t, int64(3), r.Entry)

	assert.Error(t, Decode(strings.NewReader(`{"entry": 3, "extra": true}`), &r))
}

func benchmarkRows() []row {
	rows := make([]row, 100)
	for i := range rows {
		rows[i] = row{Entry: int64(i), Cols: map[string]float64{"B_PT": float64(i) * 1.5, "K_PT": 800, "BDT": 0.25}}
	}
	return rows
}

// Benchmark standard library json.Marshal
func BenchmarkStdMarshal(b *testing.B) {
	rows := benchmarkRows()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, r := range rows {
			if _, err := json.Marshal(r); err != nil {
				b.Fatal(err)
			}
		}
	}
	b.ReportMetric(float64(len(rows)*b.N), "records/op")
}

// Benchmark the pooled streaming encoder
func BenchmarkStreamingEncoder(b *testing.B) {
	rows := benchmarkRows()
	var out bytes.Buffer
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out.Reset()
		enc, _ := NewStreamingEncoder(&out, false)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				b.Fatal(err)
			}
		}
	}
	b.ReportMetric(float64(len(rows)*b.N), "records/op")
}
