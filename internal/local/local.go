// Package local is the canonical in-memory store for open documents: the
// single source of truth for what the client renders.
//
// Mutations apply synchronously and atomically with respect to snapshot
// reads; no partial write is ever observable. Every mutating operation
// re-reads the stored document under the lock immediately before writing,
// never from a stale closure, so an in-flight edit is never clobbered.
//
// Raw mutable references never cross the package boundary: snapshots out
// are deep copies, documents in are deep-copied on the way in.
package local

import (
	"log/slog"
	"sync"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// ChangeKind classifies a change event for subscribers.
type ChangeKind string

const (
	ChangeDocument ChangeKind = "document"
	ChangeSection  ChangeKind = "section"
	ChangeElement  ChangeKind = "element"
	ChangeReplaced ChangeKind = "replaced"
)

// ChangeEvent notifies subscribers that part of a document changed.
type ChangeEvent struct {
	DocID   doc.Identifier
	Kind    ChangeKind
	Section doc.SectionKey
	Element doc.Identifier
}

// subscriber buffers this many events; a subscriber that falls further
// behind loses events and should resync from a snapshot.
const subscriberBuffer = 64

type openDoc struct {
	doc       *doc.Document
	dirty     int // pending remote resolutions
	selection []doc.Identifier
	subs      map[int]chan ChangeEvent
	nextSub   int
}

// Store holds all open documents.
//
// Thread-safety: all methods are safe for concurrent use. The lock is
// per-store, not per-document; document counts are small (open editors).
type Store struct {
	mu     sync.RWMutex
	open   map[string]*openDoc
	logger *slog.Logger
}

// NewStore creates an empty local store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{open: map[string]*openDoc{}, logger: logger}
}

// Open registers a document snapshot as open for editing.
func (s *Store) Open(d *doc.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open[d.ID.Token] = &openDoc{doc: d.Clone(), subs: map[int]chan ChangeEvent{}}
}

// Close drops an open document and its subscriptions.
func (s *Store) Close(id doc.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return
	}
	for _, ch := range od.subs {
		close(ch)
	}
	delete(s.open, id.Token)
}

// Snapshot returns a deep copy of an open document.
func (s *Store) Snapshot(id doc.Identifier) (*doc.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	od, ok := s.open[id.Token]
	if !ok {
		return nil, false
	}
	return od.doc.Clone(), true
}

// Replace swaps the full document snapshot. This is the only way fetched
// data may touch state with pending local edits: the caller must pass a
// merge-on-fetch result, never a raw server snapshot.
func (s *Store) Replace(d *doc.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[d.ID.Token]
	if !ok {
		return
	}
	od.doc = d.Clone()
	s.notify(od, ChangeEvent{DocID: d.ID, Kind: ChangeReplaced})
}

// ApplyDocument applies a document-level patch.
func (s *Store) ApplyDocument(id doc.Identifier, patch doc.DocumentPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	patch.Apply(od.doc)
	s.notify(od, ChangeEvent{DocID: id, Kind: ChangeDocument})
	return true
}

// ApplySection applies a section-level patch, creating the section lazily
// on first touch.
func (s *Store) ApplySection(id doc.Identifier, key doc.SectionKey, patch doc.SectionPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	sec, exists := od.doc.Sections[key]
	if !exists {
		sec = doc.Section{Key: key, Elements: []doc.Element{}}
		od.doc.SectionOrder = append(od.doc.SectionOrder, key)
	}
	patch.Apply(&sec)
	od.doc.Sections[key] = sec
	s.notify(od, ChangeEvent{DocID: id, Kind: ChangeSection, Section: key})
	return true
}

// RemoveSection drops a section and its order entry.
func (s *Store) RemoveSection(id doc.Identifier, key doc.SectionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	if _, exists := od.doc.Sections[key]; !exists {
		return false
	}
	delete(od.doc.Sections, key)
	order := od.doc.SectionOrder[:0]
	for _, k := range od.doc.SectionOrder {
		if k != key {
			order = append(order, k)
		}
	}
	od.doc.SectionOrder = order
	s.notify(od, ChangeEvent{DocID: id, Kind: ChangeSection, Section: key})
	return true
}

// SetSectionOrder replaces the explicit ordering list.
func (s *Store) SetSectionOrder(id doc.Identifier, order []doc.SectionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	od.doc.SectionOrder = append([]doc.SectionKey(nil), order...)
	s.notify(od, ChangeEvent{DocID: id, Kind: ChangeDocument})
	return true
}

// InsertElement appends an element to a section, creating the section
// lazily.
func (s *Store) InsertElement(id doc.Identifier, key doc.SectionKey, el doc.Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	sec, exists := od.doc.Sections[key]
	if !exists {
		sec = doc.Section{Key: key, Elements: []doc.Element{}}
		od.doc.SectionOrder = append(od.doc.SectionOrder, key)
	}
	sec.Elements = append(sec.Elements, el.Clone())
	od.doc.Sections[key] = sec
	s.notify(od, ChangeEvent{DocID: id, Kind: ChangeElement, Section: key, Element: el.ID})
	return true
}

// ApplyElement applies an element patch, addressed by whichever identifier
// the element currently carries.
func (s *Store) ApplyElement(id doc.Identifier, elemID doc.Identifier, patch doc.ElementPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	for key, sec := range od.doc.Sections {
		if i := sec.FindElement(elemID); i >= 0 {
			patch.Apply(&sec.Elements[i])
			od.doc.Sections[key] = sec
			s.notify(od, ChangeEvent{DocID: id, Kind: ChangeElement, Section: key, Element: elemID})
			return true
		}
	}
	return false
}

// RemoveElement drops an element.
func (s *Store) RemoveElement(id doc.Identifier, elemID doc.Identifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	for key, sec := range od.doc.Sections {
		if i := sec.FindElement(elemID); i >= 0 {
			sec.Elements = append(sec.Elements[:i], sec.Elements[i+1:]...)
			od.doc.Sections[key] = sec
			s.notify(od, ChangeEvent{DocID: id, Kind: ChangeElement, Section: key, Element: elemID})
			return true
		}
	}
	return false
}

// ElementByID returns a copy of the element and its section key.
func (s *Store) ElementByID(id doc.Identifier, elemID doc.Identifier) (doc.Element, doc.SectionKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	od, ok := s.open[id.Token]
	if !ok {
		return doc.Element{}, "", false
	}
	for key, sec := range od.doc.Sections {
		if i := sec.FindElement(elemID); i >= 0 {
			return sec.Elements[i].Clone(), key, true
		}
	}
	return doc.Element{}, "", false
}

// SwapElementID rewrites an element's stored identifier, and any selection
// entry pointing at the old id, so UI references keep working after an
// ephemeral id converges to its durable one.
func (s *Store) SwapElementID(id doc.Identifier, from, to doc.Identifier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return false
	}
	for key, sec := range od.doc.Sections {
		if i := sec.FindElement(from); i >= 0 {
			sec.Elements[i].ID = to
			od.doc.Sections[key] = sec
			for j, sel := range od.selection {
				if sel == from {
					od.selection[j] = to
				}
			}
			s.notify(od, ChangeEvent{DocID: id, Kind: ChangeElement, Section: key, Element: to})
			return true
		}
	}
	return false
}

// SetSelection records which elements the UI currently references.
func (s *Store) SetSelection(id doc.Identifier, selection []doc.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return
	}
	od.selection = append([]doc.Identifier(nil), selection...)
}

// Selection returns the UI's current element references.
func (s *Store) Selection(id doc.Identifier) []doc.Identifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	od, ok := s.open[id.Token]
	if !ok {
		return nil
	}
	return append([]doc.Identifier(nil), od.selection...)
}

// MarkDirty records one pending remote resolution for the document.
func (s *Store) MarkDirty(id doc.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if od, ok := s.open[id.Token]; ok {
		od.dirty++
	}
}

// ResolveDirty records that one remote call settled (success or failure).
func (s *Store) ResolveDirty(id doc.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		return
	}
	if od.dirty > 0 {
		od.dirty--
	} else {
		s.logger.Warn("dirty underflow", "doc", id.Token)
	}
}

// Dirty reports whether the document has unresolved remote calls.
func (s *Store) Dirty(id doc.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	od, ok := s.open[id.Token]
	return ok && od.dirty > 0
}

// Subscribe returns a channel of change events for one document and a
// cancel function. The channel is closed on cancel or document close.
func (s *Store) Subscribe(id doc.Identifier) (<-chan ChangeEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	od, ok := s.open[id.Token]
	if !ok {
		ch := make(chan ChangeEvent)
		close(ch)
		return ch, func() {}
	}
	ch := make(chan ChangeEvent, subscriberBuffer)
	n := od.nextSub
	od.nextSub++
	od.subs[n] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.open[id.Token]; ok {
			if sub, ok := cur.subs[n]; ok {
				delete(cur.subs, n)
				close(sub)
			}
		}
	}
	return ch, cancel
}

// notify fans an event out to subscribers without blocking; a full
// subscriber drops the event.
func (s *Store) notify(od *openDoc, ev ChangeEvent) {
	for _, ch := range od.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
