package batch

import "errors"

// ErrFormat is the sentinel wrapped by every decode failure caused by a
// malformed multipart response. Use errors.Is(err, batch.ErrFormat) to
// distinguish protocol damage from transport errors.
var ErrFormat = errors.New("batch: malformed multipart response")
