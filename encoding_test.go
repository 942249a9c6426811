package reqwire

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestParseURLEncodedForm(t *testing.T) {
	t.Parallel()

	form, err := parseURLEncodedForm([]byte("name=widget&tag=a&tag=b&empty="))
	require.NoError(t, err)

	assert.Equal(t, "widget", form["name"])
	assert.Equal(t, []string{"a", "b"}, form["tag"])
	assert.Equal(t, "", form["empty"])
}

func TestParseMultipartForm(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "widget"))
	require.NoError(t, w.WriteField("tag", "a"))
	require.NoError(t, w.WriteField("tag", "b"))

	fw, err := w.CreateFormFile("upload", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("file contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := parseMultipartForm(w.FormDataContentType(), buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "widget", form["name"])
	assert.Equal(t, []any{"a", "b"}, form["tag"])

	file, ok := form["upload"].(*FormFile)
	require.True(t, ok)
	assert.Equal(t, "notes.txt", file.Filename)
	assert.Equal(t, []byte("file contents"), file.Data)
}

func TestParseMultipartFormBadContentType(t *testing.T) {
	t.Parallel()

	_, err := parseMultipartForm("", nil)
	assert.Error(t, err)
}

func TestCodecRegistry(t *testing.T) {
	t.Parallel()

	t.Run("defaults cover json and msgpack", func(t *testing.T) {
		t.Parallel()

		codecs := DefaultCodecs()

		jsonCodec, ok := codecs.Get(EncodingJSON)
		require.True(t, ok)

		var decoded any
		require.NoError(t, jsonCodec.Decode([]byte(`{"a":1}`), &decoded))
		assert.Equal(t, map[string]any{"a": float64(1)}, decoded)

		_, ok = codecs.Get(EncodingMessagePack)
		assert.True(t, ok)
	})

	t.Run("msgpack round trip", func(t *testing.T) {
		t.Parallel()

		body, err := msgpack.Marshal(map[string]string{"name": "widget"})
		require.NoError(t, err)

		codec, ok := DefaultCodecs().Get(EncodingMessagePack)
		require.True(t, ok)

		var decoded map[string]any
		require.NoError(t, codec.Decode(body, &decoded))
		assert.Equal(t, "widget", decoded["name"])
	})

	t.Run("custom codec registration", func(t *testing.T) {
		t.Parallel()

		codecs := NewCodecRegistry()
		_, ok := codecs.Get(EncodingJSON)
		assert.False(t, ok)

		codecs.Register("application/custom", CodecFunc(func(data []byte, v any) error {
			return nil
		}))
		_, ok = codecs.Get("application/custom")
		assert.True(t, ok)
	})
}

func TestEncodingIsForm(t *testing.T) {
	t.Parallel()

	assert.True(t, EncodingURLEncoded.isForm())
	assert.True(t, EncodingMultiPart.isForm())
	assert.False(t, EncodingJSON.isForm())
	assert.False(t, EncodingMessagePack.isForm())
}
