package cache_test

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestEncode_ExactBytes(t *testing.T) {
	capturedAt := time.Date(2011, 5, 17, 9, 30, 1, 500, time.UTC)
	headers := httpheader.List{
		{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		{Name: "ETag", Value: "abc"},
	}

	got, err := cache.Encode(mustParseURL(t, "http://example.org/page?x=1"), headers, []byte("<html/>"), capturedAt)
	require.NoError(t, err)

	want := "http://example.org/page?x=1\n" +
		"2011-05-17T09:30:01Z\n" +
		"Content-Type: text/html; charset=utf-8\n" +
		"ETag: abc\n" +
		"\n" +
		"<html/>"
	assert.Equal(t, want, string(got))
}

func TestEncode_ZeroHeadersStillTerminatesBlock(t *testing.T) {
	capturedAt := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := cache.Encode(mustParseURL(t, "http://example.org/"), nil, []byte("body"), capturedAt)
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/\n2020-01-02T03:04:05Z\n\nbody", string(got))

	rec, err := cache.Decode("id", got)
	require.NoError(t, err)
	assert.Empty(t, rec.Headers)
	assert.Equal(t, "body", string(rec.Body))
}

func TestEncode_RejectsReservedDelimiters(t *testing.T) {
	u := mustParseURL(t, "http://example.org/")
	now := time.Now()

	tests := []struct {
		name    string
		headers httpheader.List
	}{
		{name: "newline in value", headers: httpheader.List{{Name: "X", Value: "a\nb"}}},
		{name: "colon in name", headers: httpheader.List{{Name: "X:Y", Value: "v"}}},
		{name: "empty name", headers: httpheader.List{{Name: "", Value: "v"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cache.Encode(u, tt.headers, nil, now)
			assert.Error(t, err)
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	capturedAt := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)
	headers := httpheader.List{
		{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		{Name: "ETag", Value: "abc"},
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "Set-Cookie", Value: "b=2"},
	}
	// body with blank lines and binary data
	body := []byte("line1\n\nline3\x00\xff")

	data, err := cache.Encode(mustParseURL(t, "https://example.org/a?b=c"), headers, body, capturedAt)
	require.NoError(t, err)

	rec, err := cache.Decode("page-1", data)
	require.NoError(t, err)

	assert.Equal(t, "page-1", rec.ID)
	assert.Equal(t, "https://example.org/a?b=c", rec.SourceURL.String())
	assert.Equal(t, headers, rec.Headers)
	assert.Equal(t, body, rec.Body)
	assert.True(t, capturedAt.Equal(rec.CapturedAt))
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "only url", data: "http://example.org/\n"},
		{name: "bad timestamp", data: "http://example.org/\nyesterday\n\nbody"},
		{name: "unterminated headers", data: "http://example.org/\n2020-01-02T03:04:05Z\nETag: abc\n"},
		{name: "malformed header", data: "http://example.org/\n2020-01-02T03:04:05Z\nbroken\n\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cache.Decode("x", []byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, cache.ErrCorruptRecord))
		})
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	capturedAt := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	headers := httpheader.List{
		{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		{Name: "ETag", Value: "abc"},
	}

	doc, err := cache.NewDocument(mustParseURL(t, "http://example.org/"), headers, []byte("<html/>"), capturedAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"Content-Type: text/html; charset=utf-8", "ETag: abc"}, doc.Headers)
	assert.Equal(t, "2023-06-01T12:00:00Z", doc.Timestamp)
	assert.NotEqual(t, []byte("<html/>"), doc.Content, "content is compressed")

	rec, err := doc.Record("doc-1")
	require.NoError(t, err)
	assert.Equal(t, headers, rec.Headers)
	assert.Equal(t, []byte("<html/>"), rec.Body)
	assert.True(t, capturedAt.Equal(rec.CapturedAt))
}

func TestDocument_CorruptContent(t *testing.T) {
	doc := cache.Document{
		URL:       "http://example.org/",
		Timestamp: "2023-06-01T12:00:00Z",
		Content:   []byte("not gzip"),
	}
	_, err := doc.Record("x")
	assert.ErrorIs(t, err, cache.ErrCorruptRecord)
}

func TestCompressRoundTrip(t *testing.T) {
	in := []byte("hello hello hello hello")
	packed, err := cache.Compress(in)
	require.NoError(t, err)
	out, err := cache.Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCacheIOError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := cache.NewCacheIOError("file", "page-1", cache.ErrCauseReadFailure, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "page-1")
	assert.Contains(t, err.Error(), "disk on fire")
	assert.False(t, err.Retryable)

	unavailable := cache.NewCacheIOError("redis", "x", cache.ErrCauseBackendUnavailable, cause)
	assert.True(t, unavailable.Retryable)
}
