package stream

import "github.com/recodeai/recode"

// ErrTruncatedStream indicates the transport closed the stream without an
// end-of-turn marker, typically a dropped connection. It is categorized
// transient so a fresh request consumes the turn's retry budget instead of
// failing outright. The accumulated text is still finalized as a partial
// assistant message.
var ErrTruncatedStream = recode.NewTransientError("stream closed without end-of-turn marker", 0, nil)
