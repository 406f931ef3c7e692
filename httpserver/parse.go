package httpserver

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/fenwick-labs/netcore/api"
)

// maxRequestLineSize and maxHeaderBlockSize bound how much a single
// request line or header block may consume before the connection is
// rejected as malformed, independent of any application-level content
// length.
const (
	maxRequestLineSize = 8 * 1024
	maxHeaderBlockSize = 64 * 1024
)

func errBadRequest(reason string) error {
	return api.NewError(api.ErrCodeInvalidArgument, "httpserver: malformed request").WithContext("reason", reason)
}

// readRequestLine reads and splits "METHOD TARGET VERSION\r\n".
func readRequestLine(r *bufio.Reader) (method, target, version string, err error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", "", "", err
	}
	if len(line) > maxRequestLineSize {
		return "", "", "", errBadRequest("request line too long")
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", errBadRequest("malformed request line")
	}
	return parts[0], parts[1], parts[2], nil
}

// readHeaderFields reads header lines up to and including the blank
// line that terminates them, preserving on-wire order and duplicates.
func readHeaderFields(r *bufio.Reader) ([]HeaderField, error) {
	var fields []HeaderField
	total := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		total += len(line)
		if total > maxHeaderBlockSize {
			return nil, errBadRequest("headers too large")
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return fields, nil
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, errBadRequest("malformed header line")
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		fields = append(fields, HeaderField{Name: name, Value: value})
	}
}

func headerValue(fields []HeaderField, name string, index int) (string, bool) {
	count := 0
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			if count == index {
				return f.Value, true
			}
			count++
		}
	}
	return "", false
}

func headerContainsToken(fields []HeaderField, name, value, delim string) bool {
	if delim == "" {
		delim = ","
	}
	for _, f := range fields {
		if !strings.EqualFold(f.Name, name) {
			continue
		}
		for _, tok := range strings.Split(f.Value, delim) {
			if strings.EqualFold(strings.TrimSpace(tok), value) {
				return true
			}
		}
	}
	return false
}

// requestContentLength inspects Content-Length and Transfer-Encoding to
// determine how the request body is framed.
func requestContentLength(fields []HeaderField) (uint64, error) {
	if te, ok := headerValue(fields, "Transfer-Encoding", 0); ok && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		return ChunkedTransferEncoding, nil
	}
	cl, ok := headerValue(fields, "Content-Length", 0)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(cl, 10, 64)
	if err != nil {
		return 0, errBadRequest("invalid Content-Length")
	}
	return n, nil
}
