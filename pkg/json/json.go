// Package json encodes scan output and decodes model files with
// goccy/go-json, reusing buffers between rows.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is a drop-in replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Decode reads a single JSON value from r. Unknown fields are rejected.
func Decode(r io.Reader, v interface{}) error {
	dec := gojson.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// StreamingEncoder writes values either as one JSON array or as
// line-delimited JSON.
type StreamingEncoder struct {
	writer      io.Writer
	firstRecord bool
	isArray     bool
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) (*StreamingEncoder, error) {
	se := &StreamingEncoder{
		writer:      w,
		firstRecord: true,
		isArray:     isArray,
	}
	if isArray {
		if _, err := w.Write([]byte{'['}); err != nil {
			return nil, err
		}
	}
	return se, nil
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if se.isArray && !se.firstRecord {
		buf.WriteByte(',')
	}
	se.firstRecord = false

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if se.isArray {
		// The array form has no line breaks between elements.
		buf.Truncate(buf.Len() - 1)
	}
	_, err := se.writer.Write(buf.Bytes())
	return err
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	if se.isArray {
		_, err := se.writer.Write([]byte("]\n"))
		return err
	}
	return nil
}
