package batch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/google/uuid"
)

// odataVersion is sent on every batch request per the 4.0 protocol.
const odataVersion = "4.0"

// Encode serializes the operations into a single multipart batch request
// targeting endpoint + "/$batch". Operations keep their caller-supplied
// order; consecutive mutating operations are bracketed into changesets.
//
// authorization is applied once at the envelope level. Any Authorization
// header carried by an individual operation is stripped from its part;
// per-operation credentials have no meaning inside a batch.
func Encode(ops []Operation, authorization, endpoint string) (*http.Request, error) {
	boundary := newBoundary("batch")

	var buf bytes.Buffer

	for _, it := range group(ops) {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)

		if it.op != nil {
			if err := writeOperation(&buf, *it.op); err != nil {
				return nil, err
			}

			continue
		}

		if err := writeChangeset(&buf, it.changeset); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	req, err := http.NewRequest(http.MethodPost, endpoint+"/$batch", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("batch: building request: %w", err)
	}

	req.Header.Set("Content-Type", "multipart/mixed; boundary="+boundary)
	req.Header.Set("OData-Version", odataVersion)
	req.Header.Set("Authorization", authorization)

	return req, nil
}

// newBoundary returns a boundary token that cannot collide with payload
// content. UUIDv4 is crypto/rand backed, so tokens are unguessable and
// distinct per call.
func newBoundary(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// writeOperation frames one operation as an application/http part body.
// The part's opening boundary line has already been written.
func writeOperation(buf *bytes.Buffer, op Operation) error {
	buf.WriteString("Content-Type: application/http\r\n")
	buf.WriteString("Content-Transfer-Encoding: binary\r\n")
	buf.WriteString("\r\n")

	fmt.Fprintf(buf, "%s %s HTTP/1.1\r\n", op.Method, op.URL)

	for _, key := range sortedHeaderKeys(op.Header) {
		// The envelope-level authorization covers every member operation.
		if http.CanonicalHeaderKey(key) == "Authorization" {
			continue
		}

		for _, value := range op.Header[key] {
			fmt.Fprintf(buf, "%s: %s\r\n", key, value)
		}
	}

	buf.WriteString("\r\n")

	if op.Body != nil {
		body, err := io.ReadAll(op.Body)
		if err != nil {
			return fmt.Errorf("batch: reading body of %s %s: %w", op.Method, op.URL, err)
		}

		buf.Write(body)
		buf.WriteString("\r\n")
	}

	return nil
}

// writeChangeset frames a run of mutating operations as a nested
// multipart/mixed part with its own boundary.
func writeChangeset(buf *bytes.Buffer, ops []Operation) error {
	boundary := newBoundary("changeset")

	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%s\r\n", boundary)
	buf.WriteString("\r\n")

	for _, op := range ops {
		fmt.Fprintf(buf, "--%s\r\n", boundary)

		if err := writeOperation(buf, op); err != nil {
			return err
		}
	}

	fmt.Fprintf(buf, "--%s--\r\n", boundary)

	return nil
}

// sortedHeaderKeys returns the header names in deterministic order so
// encoded output is stable for identical input.
func sortedHeaderKeys(h http.Header) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
