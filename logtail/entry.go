package logtail

import (
	"github.com/google/uuid"
)

// StoreId uniquely identifies the database store a WAL belongs to. It is
// recorded once per segment, in that segment's HeaderEntry.
type StoreId uuid.UUID

func (s StoreId) String() string {
	return uuid.UUID(s).String()
}

// EntryKind tags the variant held by a LogEntry.
type EntryKind uint8

const (
	// KindInvalid is the zero value and never appears in a decoded entry.
	KindInvalid EntryKind = iota
	// KindHeader appears once per segment at offset 0.
	KindHeader
	// KindStart marks the beginning of a transaction's record.
	KindStart
	// KindCommit marks successful completion of a transaction.
	KindCommit
	// KindCheckPoint records that the store is durable up to a target position.
	KindCheckPoint
	// KindOpaque covers command/rollback records the scanner recognises but
	// whose payload it does not interpret.
	KindOpaque
)

func (k EntryKind) String() string {
	switch k {
	case KindHeader:
		return "Header"
	case KindStart:
		return "Start"
	case KindCommit:
		return "Commit"
	case KindCheckPoint:
		return "CheckPoint"
	case KindOpaque:
		return "Opaque"
	default:
		return "Invalid"
	}
}

// HeaderEntry identifies the format version and store id for a segment. It
// must be the first entry in every segment file.
type HeaderEntry struct {
	SegmentVersion uint64
	StoreId        StoreId
	FormatVersion  uint8
}

// StartEntry marks the beginning of a transaction's record in the log.
type StartEntry struct {
	PreviousChecksum uint32
	TimeWritten      int64
	LastCommittedTx  int64
	Additional       []byte
}

// CommitEntry marks successful completion of the transaction identified by
// TxId.
type CommitEntry struct {
	TxId          int64
	TimeCommitted int64
	Checksum      uint32
}

// CheckPointEntry records that the system is durable up to Target.
type CheckPointEntry struct {
	Target LogPosition
}

// OpaqueEntry is a command or rollback record whose payload the scanner does
// not interpret. The scanner reads past it but it does not count toward
// commit-after-checkpoint detection or any other part of the verdict:
// present, but uninformative on its own.
type OpaqueEntry struct {
	Tag     byte
	Payload []byte
}

// LogEntry is a tagged variant over the WAL's record kinds. Exactly one of
// the typed fields is meaningful, selected by Kind.
type LogEntry struct {
	Kind EntryKind

	Header     HeaderEntry
	Start      StartEntry
	Commit     CommitEntry
	CheckPoint CheckPointEntry
	Opaque     OpaqueEntry
}
