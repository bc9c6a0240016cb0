// Package document implements the Rope Document Table (C1): a concurrent
// mirror of editor buffers keyed by URI, answering position-relative
// prefix/suffix queries used to build model prompts.
package document

import (
	"sort"
	"sync"

	"github.com/lsp-ai-go/lsp-ai-go/internal/apperr"
	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
	"github.com/lsp-ai-go/lsp-ai-go/internal/position"
	"github.com/lsp-ai-go/lsp-ai-go/internal/rope"
)

type entry struct {
	text     *rope.Rope
	version  int
	language string
}

// Table owns every open document's rope exclusively; all other components
// hold short-lived Snapshots obtained from it.
type Table struct {
	mu   sync.RWMutex
	docs map[lsp.DocumentURI]*entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{docs: make(map[lsp.DocumentURI]*entry)}
}

// Snapshot is an immutable view of a document at a specific version, cheap
// to clone thanks to the rope's structural sharing.
type Snapshot struct {
	URI      lsp.DocumentURI
	Version  int
	Language string
	rope     *rope.Rope
}

// Text materializes the snapshot's full document text.
func (s *Snapshot) Text() string { return s.rope.String() }

// Open creates document state on textDocument/didOpen.
func (t *Table) Open(uri lsp.DocumentURI, text string, version int, language string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs[uri] = &entry{text: rope.New(text), version: version, language: language}
}

// Close destroys document state on textDocument/didClose and returns the
// final snapshot so a caller (e.g. the memory backend's chunker) can index
// the document's last state — the table persists nothing itself.
func (t *Table) Close(uri lsp.DocumentURI) (*Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.docs[uri]
	if !ok {
		return nil, apperr.NotFound(uri)
	}
	delete(t.docs, uri)
	return &Snapshot{URI: uri, Version: e.version, Language: e.language, rope: e.text.Clone()}, nil
}

// Snapshot returns a cheap, copy-on-write immutable view of the current
// document state, consistent across the lifetime of a single RPC.
func (t *Table) Snapshot(uri lsp.DocumentURI) (*Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.docs[uri]
	if !ok {
		return nil, apperr.NotFound(uri)
	}
	return &Snapshot{URI: uri, Version: e.version, Language: e.language, rope: e.text.Clone()}, nil
}

// byteRange is a resolved, half-open [Start, End) edit range in bytes.
type byteRange struct {
	start, end int
	text       string
}

// Change applies a textDocument/didChange notification's edits atomically.
// Edits arriving with version <= the stored version are dropped entirely
// (idempotent replay protection, §3). A coherence violation (overlapping
// or out-of-bounds ranges) fails the whole change with InvalidState and
// commits nothing, per §4.1.
func (t *Table) Change(uri lsp.DocumentURI, version int, changes []lsp.TextDocumentContentChangeEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.docs[uri]
	if !ok {
		return apperr.NotFound(uri)
	}
	if version <= e.version {
		return nil // stale replay, silently dropped
	}
	if len(changes) == 0 {
		e.version = version
		return nil
	}

	// A change event with no Range denotes whole-document replacement. If
	// present, the client is using Full sync: take the last such event's
	// text as the new document and ignore the rest of the batch.
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].Range == nil {
			e.text = rope.New(changes[i].Text)
			e.version = version
			return nil
		}
	}

	original := e.text
	baseText := []byte(original.String())
	baseLen := original.Len()

	ranges := make([]byteRange, 0, len(changes))
	for _, ch := range changes {
		start, err := position.ToOffset(baseText, ch.Range.Start)
		if err != nil {
			return apperr.OutOfRange(err.Error())
		}
		end, err := position.ToOffset(baseText, ch.Range.End)
		if err != nil {
			return apperr.OutOfRange(err.Error())
		}
		// ToOffset clamps positions past a line's end or past the last line;
		// a range that does not map back to itself lies outside the document.
		if position.ToPosition(baseText, start) != ch.Range.Start || position.ToPosition(baseText, end) != ch.Range.End {
			return apperr.InvalidState("edit range out of document bounds")
		}
		if start < 0 || end > baseLen || start > end {
			return apperr.InvalidState("edit range out of document bounds")
		}
		ranges = append(ranges, byteRange{start: start, end: end, text: ch.Text})
	}

	if err := checkNoOverlap(ranges); err != nil {
		return err
	}

	// Apply from the highest start offset down so each edit's
	// precomputed offsets (taken against the original text) remain valid
	// for the ones applied after it.
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start > ranges[j].start })
	newRope := original.Clone()
	for _, r := range ranges {
		newRope = newRope.Replace(r.start, r.end, r.text)
	}

	e.text = newRope
	e.version = version
	return nil
}

func checkNoOverlap(ranges []byteRange) error {
	sorted := make([]byteRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].start < sorted[i-1].end {
			return apperr.InvalidState("overlapping edit ranges in one change notification")
		}
	}
	return nil
}
