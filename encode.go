package serialz

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding is the wire format of a structured response body.
type Encoding int

// Supported encodings. JSON is the default.
const (
	EncodingJSON Encoding = iota
	EncodingMsgpack
)

// Content types written for each encoding.
const (
	ContentTypeJSON    = "application/json; charset=utf-8"
	ContentTypeMsgpack = "application/msgpack"
)

// String returns the encoding name.
func (e Encoding) String() string {
	if e == EncodingMsgpack {
		return "msgpack"
	}
	return "json"
}

// ContentType returns the Content-Type header value for the encoding.
func (e Encoding) ContentType() string {
	if e == EncodingMsgpack {
		return ContentTypeMsgpack
	}
	return ContentTypeJSON
}

// Negotiate picks an encoding from an Accept header. Media ranges are read in
// order and the first supported one wins; ranges with q=0 are skipped.
func Negotiate(accept string) Encoding {
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if q, ok := params["q"]; ok && strings.Trim(q, "0.") == "" {
			continue
		}
		switch mediaType {
		case "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
			return EncodingMsgpack
		case "application/json", "application/*", "*/*":
			return EncodingJSON
		}
	}
	return EncodingJSON
}

// Encode serializes v. Struct fields are named by their json tags in both
// encodings, so an ErrorResponse has the same keys either way.
func (e Encoding) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if e == EncodingMsgpack {
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode deserializes a body written with the given encoding.
func Decode[T any](e Encoding, data []byte) (T, error) {
	var value T
	if e == EncodingMsgpack {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		err := dec.Decode(&value)
		return value, err
	}
	err := json.Unmarshal(data, &value)
	return value, err
}
