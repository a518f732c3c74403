// internal/event/event.go
package event

import (
	"github.com/bethropolis/treesync/internal/document"
)

// Type identifies the kind of event.
type Type int

// Define specific event types.
const (
	TypeUnknown Type = iota

	// Document events
	TypeDocumentChanged // Fired for each contiguous text replacement
	TypeDocumentLoaded  // Fired after a document is successfully loaded
	TypeDocumentSaved   // Fired after a document is successfully saved

	// Engine events
	TypeTreeUpdated    // Fired when a parse replaces the current tree
	TypeEngineDisposed // Fired once when the engine is torn down
)

// Event is the structure passed through the event bus.
type Event struct {
	Type Type        // The kind of event
	Data interface{} // Payload carrying event-specific data
}

// --- Specific Event Data Structures ---

// DocumentChangedData carries one ordered change record for incremental parsing.
type DocumentChangedData struct {
	Change document.Change
}

// DocumentLoadedData contains info about the loaded document.
type DocumentLoadedData struct {
	FilePath string
	Size     uint32
}

// TreeUpdatedData describes a tree replacement.
type TreeUpdatedData struct {
	Generation uint64 // Parse operation id that produced the tree
}
