package relay

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrEmptyRequest means the client sent nothing but whitespace.
	ErrEmptyRequest = errors.New("empty request")
	// ErrLineTooLong means the request line exceeds the configured ceiling.
	ErrLineTooLong = errors.New("request line too long")
	// ErrInvalidEncoding means the request line is not valid UTF-8.
	ErrInvalidEncoding = errors.New("request is not valid UTF-8")
)

// ReadRequest reads one request line of at most max bytes, not counting the
// newline. A stream that ends without a newline still yields its data as the
// line. Trailing whitespace is stripped.
func ReadRequest(r io.Reader, max int) (string, error) {
	br := bufio.NewReader(io.LimitReader(r, int64(max)+1))

	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	if !strings.HasSuffix(line, "\n") && len(line) > max {
		return "", ErrLineTooLong
	}

	if !utf8.ValidString(line) {
		return "", ErrInvalidEncoding
	}

	req := strings.TrimRightFunc(line, unicode.IsSpace)
	if req == "" {
		return "", ErrEmptyRequest
	}

	return req, nil
}
