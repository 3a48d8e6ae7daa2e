// Package fmid manages FileMaker ID sessions: it drives the identity
// provider's authenticate and refresh operations, caches the resulting
// session, and hands out ready-to-use Authorization header values for
// the OData transport.
package fmid

import "errors"

// ErrConfigFetch is wrapped by every failure to obtain the user pool
// descriptor. It is terminal for the in-flight acquisition and never
// leaves partial state behind; callers can treat it as infrastructure
// trouble rather than bad credentials.
var ErrConfigFetch = errors.New("fmid: could not fetch user pool config")
