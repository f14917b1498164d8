// Package serializer converts stored responses to and from bytes.
// The format is the HTTP/1.1 representation of the response: status line,
// header section, empty line and the body as is.
package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// StoredResponse is the part of a response that the cache keeps.
type StoredResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ResponseToBytes returns the HTTP/1.1 representation of the response.
// Content-Length is written from the header as stored, not from the body,
// so that responses to HEAD requests keep their length.
func ResponseToBytes(res StoredResponse) []byte {
	buf := &bytes.Buffer{}
	// this uses HTTP 1.1 format only
	fmt.Fprintf(buf, "HTTP/1.1 %03d %s\r\n", res.StatusCode, http.StatusText(res.StatusCode))
	res.Header.Write(buf)
	buf.WriteString("\r\n")
	buf.Write(res.Body)
	return buf.Bytes()
}

// BytesToResponse parses bytes written by ResponseToBytes.
// Everything after the header section is the body.
func BytesToResponse(b []byte) (StoredResponse, error) {
	br := bufio.NewReader(bytes.NewReader(b))
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return StoredResponse{}, fmt.Errorf("could not read status line: %w", err)
	}
	proto, status, found := strings.Cut(line, " ")
	if !found || !strings.HasPrefix(proto, "HTTP/") {
		return StoredResponse{}, fmt.Errorf("malformed status line %q", line)
	}
	code, _, _ := strings.Cut(status, " ")
	statusCode, err := strconv.Atoi(code)
	if err != nil || statusCode < 100 || statusCode > 999 {
		return StoredResponse{}, fmt.Errorf("malformed status code %q", code)
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return StoredResponse{}, fmt.Errorf("could not read header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return StoredResponse{}, err
	}
	return StoredResponse{
		StatusCode: statusCode,
		Header:     http.Header(mimeHeader),
		Body:       body,
	}, nil
}
