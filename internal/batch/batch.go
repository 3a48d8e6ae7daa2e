// Package batch implements the multipart/mixed wire format spoken by the
// OData $batch endpoint: grouping of operations into changesets,
// serialization of the outbound envelope, and recursive parsing of the
// (possibly nested) multipart response.
//
// This is deliberately not a general-purpose MIME implementation; only
// the subset of multipart/mixed needed for batch/changeset framing is
// supported.
package batch

import (
	"io"
	"net/http"
)

// Operation is a single HTTP-style request to include in a batch.
// The codec never mutates an Operation; Body, if non-nil, is consumed
// once during encoding.
type Operation struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// Response is one decoded result from a batch response. Decode returns
// responses in the wire order of the parts, which matches the order of
// the operations that produced them.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// item is one element of the batch envelope: either a lone operation or
// an atomic changeset of consecutive mutating operations.
type item struct {
	op        *Operation
	changeset []Operation
}

// group partitions operations into envelope items without reordering.
// A run of consecutive non-GET operations forms one changeset; a GET is
// emitted as a singleton and closes any open changeset. Only GET closes
// a changeset; HEAD and other verbs are grouped as mutating, matching
// the server's observed contract.
func group(ops []Operation) []item {
	var items []item
	open := -1 // index into items of the open changeset, or -1

	for _, op := range ops {
		op := op

		if op.Method == http.MethodGet {
			items = append(items, item{op: &op})
			open = -1

			continue
		}

		if open < 0 {
			items = append(items, item{changeset: []Operation{op}})
			open = len(items) - 1

			continue
		}

		items[open].changeset = append(items[open].changeset, op)
	}

	return items
}
