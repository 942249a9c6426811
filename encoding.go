package reqwire

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects the body decoder bound to a plan. Values follow the
// request content types they correspond to.
type Encoding string

const (
	EncodingJSON        Encoding = "application/json"
	EncodingMessagePack Encoding = "application/x-msgpack"
	EncodingURLEncoded  Encoding = "application/x-www-form-urlencoded"
	EncodingMultiPart   Encoding = "multipart/form-data"
)

// isForm reports whether the encoding is one of the two form encodings.
func (e Encoding) isForm() bool {
	return e == EncodingURLEncoded || e == EncodingMultiPart
}

// Codec decodes a raw body into a structure. This package only selects which
// codec to call; decoding itself is the codec's concern.
type Codec interface {
	Decode(data []byte, v any) error
}

// CodecFunc adapts a function to the Codec interface.
type CodecFunc func(data []byte, v any) error

func (f CodecFunc) Decode(data []byte, v any) error { return f(data, v) }

// CodecRegistry maps structured encodings to codecs. The zero registry is
// not usable; start from NewCodecRegistry or DefaultCodecs.
type CodecRegistry struct {
	codecs map[Encoding]Codec
}

// NewCodecRegistry creates an empty codec registry.
func NewCodecRegistry() *CodecRegistry {
	return &CodecRegistry{codecs: make(map[Encoding]Codec)}
}

// DefaultCodecs returns a registry with the stock JSON and MessagePack
// codecs.
func DefaultCodecs() *CodecRegistry {
	r := NewCodecRegistry()
	r.Register(EncodingJSON, CodecFunc(json.Unmarshal))
	r.Register(EncodingMessagePack, CodecFunc(msgpack.Unmarshal))
	return r
}

// Register binds a codec to an encoding, replacing any previous binding.
func (r *CodecRegistry) Register(encoding Encoding, codec Codec) {
	r.codecs[encoding] = codec
}

// Get returns the codec bound to encoding, if any.
func (r *CodecRegistry) Get(encoding Encoding) (Codec, bool) {
	c, ok := r.codecs[encoding]
	return c, ok
}

// FormFile is one uploaded file from a multipart form.
type FormFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// parseURLEncodedForm parses an url-encoded body into a string-keyed map.
// Repeated fields collapse to a []string, single occurrences stay strings.
func parseURLEncodedForm(body []byte) (map[string]any, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			out[key] = vals[0]
		} else {
			out[key] = vals
		}
	}
	return out, nil
}

// parseMultipartForm parses a multipart body. File parts become *FormFile,
// other parts become strings; repeated names collapse to a []any.
func parseMultipartForm(contentType string, body []byte) (map[string]any, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, err
	}

	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	form, err := reader.ReadForm(32 << 20)
	if err != nil {
		return nil, err
	}
	defer form.RemoveAll() //nolint:errcheck

	out := make(map[string]any, len(form.Value)+len(form.File))
	for key, vals := range form.Value {
		for _, val := range vals {
			addFormValue(out, key, val)
		}
	}
	for key, headers := range form.File {
		for _, header := range headers {
			file, err := readFormFile(header)
			if err != nil {
				return nil, err
			}
			addFormValue(out, key, file)
		}
	}
	return out, nil
}

func readFormFile(header *multipart.FileHeader) (*FormFile, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &FormFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func addFormValue(out map[string]any, key string, value any) {
	existing, ok := out[key]
	if !ok {
		out[key] = value
		return
	}
	if list, isList := existing.([]any); isList {
		out[key] = append(list, value)
		return
	}
	out[key] = []any{existing, value}
}
