package batch

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// Decode parses a multipart batch response body into individual
// responses in wire order. Nested multipart/mixed parts (changeset
// replies) are decoded recursively and their results spliced in place,
// so the output order matches the original operation order.
//
// A missing closing boundary marker is tolerated; everything preceding
// it is parsed. Structural damage (no boundary, a part without a
// Content-Type, an unrecognized content type) fails with an error
// wrapping ErrFormat.
func Decode(body []byte, header http.Header) ([]Response, error) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return nil, fmt.Errorf("%w: response has no Content-Type header", ErrFormat)
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable Content-Type %q", ErrFormat, contentType)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("%w: Content-Type %q has no boundary attribute", ErrFormat, contentType)
	}

	return decodeEnvelope(string(body), boundary)
}

// decodeEnvelope splits one multipart body on its boundary delimiter and
// decodes each part. Recursion bottoms out at application/http parts;
// depth is bounded by the input itself, never by an assumed maximum.
func decodeEnvelope(body, boundary string) ([]Response, error) {
	if i := strings.Index(body, "--"+boundary+"--"); i >= 0 {
		body = body[:i]
	}

	var responses []Response

	for _, segment := range strings.Split(body, "--"+boundary) {
		// The empty segment before the first delimiter is the preamble.
		if strings.TrimSpace(segment) == "" {
			continue
		}

		parsed, err := decodePart(segment)
		if err != nil {
			return nil, err
		}

		responses = append(responses, parsed...)
	}

	return responses, nil
}

// decodePart dispatches a single part on its Content-Type: an
// application/http part yields one response, a nested multipart/mixed
// part yields the responses of its members.
func decodePart(segment string) ([]Response, error) {
	// Drop the tail of the boundary line the split left behind.
	part := strings.TrimPrefix(strings.TrimLeft(segment, " \t"), "\r\n")

	headerBlock, body := cutBlankLine(part)
	header := parseHeaderLines(headerBlock)

	contentType := header.Get("Content-Type")
	if contentType == "" {
		return nil, fmt.Errorf("%w: part has no Content-Type header", ErrFormat)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: part has unparseable Content-Type %q", ErrFormat, contentType)
	}

	switch mediaType {
	case "application/http":
		resp, err := decodeHTTPResponse(body)
		if err != nil {
			return nil, err
		}

		return []Response{resp}, nil
	case "multipart/mixed":
		nested := params["boundary"]
		if nested == "" {
			return nil, fmt.Errorf("%w: nested part Content-Type %q has no boundary attribute", ErrFormat, contentType)
		}

		return decodeEnvelope(body, nested)
	default:
		return nil, fmt.Errorf("%w: unrecognized part content type %q", ErrFormat, contentType)
	}
}

// decodeHTTPResponse parses the serialized HTTP response inside an
// application/http part: status line, headers, body.
func decodeHTTPResponse(raw string) (Response, error) {
	statusLine, rest, _ := strings.Cut(raw, "\r\n")

	fields := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	if len(fields) < 2 {
		return Response{}, fmt.Errorf("%w: malformed status line %q", ErrFormat, statusLine)
	}

	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return Response{}, fmt.Errorf("%w: non-numeric status code in %q", ErrFormat, statusLine)
	}

	var status string
	if len(fields) == 3 {
		status = fields[2]
	}

	headerBlock, body := cutBlankLine(rest)

	return Response{
		StatusCode: code,
		Status:     status,
		Header:     parseHeaderLines(headerBlock),
		Body:       []byte(strings.TrimRight(body, " \t\r\n")),
	}, nil
}

// cutBlankLine splits s at the first blank-line sequence. A leading
// blank line means the head (the header block) is empty.
func cutBlankLine(s string) (head, tail string) {
	if strings.HasPrefix(s, "\r\n") {
		return "", strings.TrimPrefix(s, "\r\n")
	}

	i := strings.Index(s, "\r\n\r\n")
	if i < 0 {
		return s, ""
	}

	return s[:i], s[i+4:]
}

// parseHeaderLines parses "Name: value" lines into an http.Header.
// Lines without a colon are skipped rather than rejected; servers pad
// parts with stray whitespace often enough that strictness here only
// causes grief.
func parseHeaderLines(block string) http.Header {
	header := http.Header{}

	for _, line := range strings.Split(block, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}

		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	return header
}
