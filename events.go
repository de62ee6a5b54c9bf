package memvec

import (
	"fmt"

	"github.com/hupe1980/memvec/metadata"
)

// EventType identifies a store lifecycle event.
type EventType int

const (
	// EventInitialized fires once when the store is constructed.
	EventInitialized EventType = iota

	// EventVectorAdded fires after a vector is stored and indexed.
	EventVectorAdded

	// EventVectorDeleted fires after a vector is removed.
	EventVectorDeleted

	// EventMetadataUpdated fires after a metadata merge.
	EventMetadataUpdated

	// EventReasoningAdded fires after a reasoning record is stored.
	EventReasoningAdded

	// EventCleared fires after the store is reset.
	EventCleared

	// EventSnapshotImported fires after a snapshot replaces the state.
	EventSnapshotImported
)

func (t EventType) String() string {
	switch t {
	case EventInitialized:
		return "Initialized"
	case EventVectorAdded:
		return "VectorAdded"
	case EventVectorDeleted:
		return "VectorDeleted"
	case EventMetadataUpdated:
		return "MetadataUpdated"
	case EventReasoningAdded:
		return "ReasoningAdded"
	case EventCleared:
		return "Cleared"
	case EventSnapshotImported:
		return "SnapshotImported"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Event describes a completed mutation. ID is set for vector events,
// ReasoningID for reasoning events, Metadata for metadata updates.
type Event struct {
	Type        EventType
	ID          uint64
	ReasoningID string
	Metadata    metadata.Metadata
}

// Handler observes lifecycle events. Handlers run synchronously under the
// store lock, after the mutation is applied; they must not call back into
// the store.
type Handler func(Event)
