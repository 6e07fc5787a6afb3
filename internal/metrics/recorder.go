// Package metrics defines the engine's observability contract. A nil
// Recorder is always valid and a no-op, so metrics collection is entirely
// optional: pass nil to run with zero overhead.
package metrics

import "time"

// Recorder observes connection lifecycle and per-procedure outcomes.
// Implementations must tolerate concurrent calls from every connection's
// worker goroutines.
type Recorder interface {
	// RecordCall records one completed RPC dispatch: its procedure, how
	// long it took, and its RPC-level outcome. The server passes the
	// procedure as "<prog>.<proc>" and the status as a lowercase
	// accept_stat label ("ok" for success).
	RecordCall(procedure string, duration time.Duration, status string)

	// RecordBytes records payload bytes moved by a READ or WRITE call.
	RecordBytes(direction string, bytes uint64)

	// SetActiveConnections reports the current accepted-connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted/Closed/ForceClosed track connection churn.
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()

	// RecordMount records a successful MNT or UMNT/UMNTALL.
	RecordMount(mounted bool)
}
