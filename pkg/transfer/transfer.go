// Package transfer implements the versioned JSON export/import document
// covering the saved-addon library and account metadata. Credentials never
// leave the vault; exports carry account ids and names only.
package transfer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DrZacharySmith/stremio-account-manager/pkg/library"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/storage"
	"github.com/DrZacharySmith/stremio-account-manager/pkg/syncer"
)

// DocumentVersion is the current export format version.
const DocumentVersion = 1

// Import modes.
const (
	ModeMerge   = "merge"
	ModeReplace = "replace"
)

// ValidationError reports a malformed import document. The operation
// aborts before any state is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid import document: " + e.Reason
}

// AccountRecord is the credential-free account entry in an export.
type AccountRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Document is the export file layout.
type Document struct {
	Version       int                   `json:"version"`
	ExportedAt    time.Time             `json:"exportedAt"`
	Addons        []library.SavedAddon  `json:"addons"`
	Accounts      []AccountRecord       `json:"accounts,omitempty"`
	AccountStates []syncer.AccountState `json:"accountStates,omitempty"`
}

// Export builds a document from the current library and account data.
func Export(lib *library.Library, accounts []storage.Account, states map[string]syncer.AccountState, now time.Time) Document {
	doc := Document{
		Version:    DocumentVersion,
		ExportedAt: now,
		Addons:     lib.All(),
	}
	for _, a := range accounts {
		doc.Accounts = append(doc.Accounts, AccountRecord{ID: a.ID, Name: a.Name})
		if state, ok := states[a.ID]; ok {
			doc.AccountStates = append(doc.AccountStates, state)
		}
	}
	return doc
}

// Parse decodes and validates a document. Any structural problem is a
// ValidationError and nothing else gets to run.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, &ValidationError{Reason: err.Error()}
	}
	if err := validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func validate(doc Document) error {
	if doc.Version <= 0 {
		return &ValidationError{Reason: "missing version"}
	}
	if doc.Version > DocumentVersion {
		return &ValidationError{Reason: fmt.Sprintf("unsupported version %d (newest supported: %d)", doc.Version, DocumentVersion)}
	}
	for i, saved := range doc.Addons {
		if saved.InstallURL == "" {
			return &ValidationError{Reason: fmt.Sprintf("addons[%d]: missing installUrl", i)}
		}
		if saved.Manifest.ID == "" {
			return &ValidationError{Reason: fmt.Sprintf("addons[%d]: manifest missing id", i)}
		}
	}
	return nil
}

// ImportLibrary applies the document's addons to the existing library and
// returns the resulting library plus the number of imported templates.
// Merge keeps existing entries and assigns fresh ids to the incoming
// ones; replace discards the existing library entirely.
func ImportLibrary(existing *library.Library, doc Document, mode string, now time.Time) (*library.Library, int, error) {
	if err := validate(doc); err != nil {
		return nil, 0, err
	}

	var lib *library.Library
	switch mode {
	case ModeMerge:
		lib = library.New(existing.Snapshot())
	case ModeReplace:
		lib = library.New(nil)
	default:
		return nil, 0, fmt.Errorf("unknown import mode %q", mode)
	}

	count := 0
	for _, saved := range doc.Addons {
		// Incoming entries always get fresh ids so merge can never
		// collide with what's already there.
		if saved.SourceType == "" {
			saved.SourceType = library.SourceManual
		}
		created := lib.Create(saved.Name, saved.InstallURL, saved.Manifest, saved.Tags, saved.SourceType, saved.SourceAccountID, now)
		saved.ID = created.ID
		if err := lib.Update(saved, now); err != nil {
			return nil, 0, err
		}
		count++
	}
	return lib, count, nil
}
