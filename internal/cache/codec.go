package cache

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/rohmanhakim/cached-fetcher/pkg/timeutil"
)

/*
Record wire format

	<source url>\n
	<yyyy-MM-ddTHH:mm:ssZ>\n
	<Name>: <value>\n      zero or more
	\n
	<raw body bytes>

The preamble is UTF-8 text. The header block always ends with exactly one
blank line, even when there are no headers. The body is written as-is with
no further framing, so it may contain anything including blank lines.
*/

var ErrCorruptRecord = errors.New("corrupt cache record")

// Encode serializes a record into the wire format. Fields must not contain
// the reserved line delimiter.
func Encode(sourceURL url.URL, headers httpheader.List, body []byte, capturedAt time.Time) ([]byte, error) {
	u := sourceURL.String()
	if strings.ContainsAny(u, "\r\n") {
		return nil, fmt.Errorf("source url contains a line break: %q", u)
	}

	var buf bytes.Buffer
	buf.Grow(len(u) + 22 + len(body) + 64*len(headers))

	buf.WriteString(u)
	buf.WriteByte('\n')
	buf.WriteString(timeutil.FormatCaptureTime(capturedAt))
	buf.WriteByte('\n')
	for _, h := range headers {
		if err := validateField(h); err != nil {
			return nil, err
		}
		buf.WriteString(h.String())
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(body)

	return buf.Bytes(), nil
}

// Decode parses the wire format. Any structural problem is reported as
// ErrCorruptRecord.
func Decode(id string, data []byte) (Record, error) {
	rest := data

	rawURL, rest, err := readLine(rest)
	if err != nil {
		return Record{}, fmt.Errorf("%w: source url: %v", ErrCorruptRecord, err)
	}
	sourceURL, err := url.Parse(rawURL)
	if err != nil {
		return Record{}, fmt.Errorf("%w: source url: %v", ErrCorruptRecord, err)
	}

	rawTime, rest, err := readLine(rest)
	if err != nil {
		return Record{}, fmt.Errorf("%w: timestamp: %v", ErrCorruptRecord, err)
	}
	capturedAt, err := timeutil.ParseCaptureTime(rawTime)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	headers := httpheader.List{}
	for {
		var line string
		line, rest, err = readLine(rest)
		if err != nil {
			return Record{}, fmt.Errorf("%w: header block not terminated", ErrCorruptRecord)
		}
		if line == "" {
			break
		}
		field, err := httpheader.ParseLine(line)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		headers = append(headers, field)
	}

	body := make([]byte, len(rest))
	copy(body, rest)

	return Record{
		ID:         id,
		SourceURL:  *sourceURL,
		Headers:    headers,
		Body:       body,
		CapturedAt: capturedAt,
	}, nil
}

func readLine(data []byte) (string, []byte, error) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return "", nil, errors.New("unexpected end of record")
	}
	return string(data[:i]), data[i+1:], nil
}

func validateField(h httpheader.Field) error {
	if h.Name == "" || strings.ContainsAny(h.Name, ":\r\n") {
		return fmt.Errorf("invalid header name %q", h.Name)
	}
	if strings.ContainsAny(h.Value, "\r\n") {
		return fmt.Errorf("header %s value contains a line break", h.Name)
	}
	return nil
}
