package models

// OutboxRecord wraps one pending entity mutation awaiting replay against
// the remote system.
//
// Lifecycle: created when a mutation is captured while unreachable, mutated
// only by the sync engine (attempts / last error), marked Synced on remote
// success, physically removed by a separate purge pass. A record is never
// deleted before Synced is true, and Attempts only increases.
type OutboxRecord struct {
	// TempID is the client-generated identifier assigned at capture time,
	// stable until replaced by a permanent identifier after sync.
	TempID string

	Kind Kind

	// Payload is the entity's field mapping at time of capture, with
	// sensitive fields already encrypted.
	Payload Document

	// CreatedAt is the capture timestamp in unix milliseconds; ordering
	// within a kind is FIFO by this value.
	CreatedAt int64

	Synced        bool
	Attempts      int
	LastError     string
	LastAttemptAt int64
}
