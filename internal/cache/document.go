package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/rohmanhakim/cached-fetcher/pkg/timeutil"
)

// Document is the named-field form of a record used by the document and
// key-value backends. It carries the same four logical fields as the wire
// format; the body is stored gzip-compressed.
type Document struct {
	URL       string   `msgpack:"url" json:"url"`
	Headers   []string `msgpack:"headers" json:"headers"`
	Timestamp string   `msgpack:"timestamp" json:"timestamp"`
	Content   []byte   `msgpack:"content" json:"content"`
}

func NewDocument(sourceURL url.URL, headers httpheader.List, body []byte, capturedAt time.Time) (Document, error) {
	for _, h := range headers {
		if err := validateField(h); err != nil {
			return Document{}, err
		}
	}
	content, err := Compress(body)
	if err != nil {
		return Document{}, err
	}
	return Document{
		URL:       sourceURL.String(),
		Headers:   headers.Lines(),
		Timestamp: timeutil.FormatCaptureTime(capturedAt),
		Content:   content,
	}, nil
}

// Record decodes the document back into a Record. Structural problems are
// reported as ErrCorruptRecord.
func (d Document) Record(id string) (Record, error) {
	sourceURL, err := url.Parse(d.URL)
	if err != nil {
		return Record{}, fmt.Errorf("%w: source url: %v", ErrCorruptRecord, err)
	}
	capturedAt, err := timeutil.ParseCaptureTime(d.Timestamp)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	headers, err := httpheader.ParseLines(d.Headers)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	body, err := Decompress(d.Content)
	if err != nil {
		return Record{}, fmt.Errorf("%w: content: %v", ErrCorruptRecord, err)
	}
	return Record{
		ID:         id,
		SourceURL:  *sourceURL,
		Headers:    headers,
		Body:       body,
		CapturedAt: capturedAt,
	}, nil
}

// Compress gzips body.
func Compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
