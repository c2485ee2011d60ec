// Package codec encodes the small JSON documents c2vprep writes for operators:
// the distributor metadata record and the preprocess run summary.
//
// Documents are plain indented JSON, readable by encoding/json and jq alike.
package codec

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// Codec encodes and decodes documents.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is used for metadata records and summaries.
var Default Codec = GoJSON{}

const indent = "  "

// GoJSON is backed by github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.MarshalIndent(v, "", indent) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// Write encodes v with c and terminates the document with a newline.
// A nil c means Default.
func Write(w io.Writer, c Codec, v any) error {
	if c == nil {
		c = Default
	}
	data, err := c.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
