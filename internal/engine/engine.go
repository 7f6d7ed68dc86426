package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aivexl/tamuu-sub000/internal/doc"
	"github.com/aivexl/tamuu-sub000/internal/local"
	"github.com/aivexl/tamuu-sub000/internal/schema"
	"github.com/aivexl/tamuu-sub000/internal/store"
)

// dispatchTimeout bounds each background network call.
const dispatchTimeout = 15 * time.Second

// Engine is the optimistic sync engine. Mutating methods apply the change
// to the canonical local store synchronously, then dispatch the network
// call and return; completions are delivered to the Run loop, which is the
// single writer for identity binding, drift reconciliation and id
// swapping.
//
// All mutating methods must be called from one goroutine (the owner of
// the editing session). Run must be running for completions to be
// processed.
type Engine struct {
	local     *local.Store
	remote    Remote
	ids       *Resolver
	pending   *pendingSet
	queue     *completionQueue
	clock     *Clock
	validator *schema.Validator
	retry     RetryPolicy
	logger    *slog.Logger

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRetryPolicy overrides the read retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// New creates an engine over the given local store and remote.
func New(localStore *local.Store, remote Remote, opts ...Option) (*Engine, error) {
	validator, err := schema.Default()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		local:     localStore,
		remote:    remote,
		pending:   newPendingSet(),
		queue:     newCompletionQueue(),
		clock:     NewClock(),
		validator: validator,
		retry:     DefaultRetryPolicy(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ids = NewResolver(e.logger)
	return e, nil
}

// MutateOption modifies a single mutation call.
type MutateOption func(*mutateConfig)

type mutateConfig struct {
	localOnly bool
}

// LocalOnly applies the mutation to the local store without dispatching a
// network call. Used for high-frequency interactions (dragging) where only
// the final value should reach the network.
func LocalOnly() MutateOption {
	return func(c *mutateConfig) { c.localOnly = true }
}

func applyOpts(opts []MutateOption) mutateConfig {
	var c mutateConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Run drains network completions until ctx is cancelled. It is the only
// goroutine that binds identities, computes drift and swaps element ids.
func (e *Engine) Run(ctx context.Context) error {
	for {
		for {
			c, ok := e.queue.TryDequeue()
			if !ok {
				break
			}
			e.handle(c)
		}
		if e.queue.Closed() && e.queue.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.queue.Wait():
		}
	}
}

// Close stops accepting new completions and waits for in-flight network
// goroutines to deliver theirs. Call after the owning goroutine has
// stopped issuing mutations.
func (e *Engine) Close() {
	e.wg.Wait()
	e.queue.Close()
}

// CreateDocument creates a document on the durable side and opens it
// locally. Unlike element creation this is synchronous: every subsequent
// call needs the document's durable id.
func (e *Engine) CreateDocument(ctx context.Context, name string) (*doc.Document, error) {
	if name == "" {
		return nil, NewValidationError("", "document name is required", nil)
	}
	created, err := e.remote.CreateDocument(ctx, doc.Document{Name: name})
	if err != nil {
		return nil, err
	}
	e.local.Open(&created)
	snap, _ := e.local.Snapshot(created.ID)
	return snap, nil
}

// OpenDocument fetches a document (with read retries) and opens it in the
// local store. Returns (nil, nil) when the document does not exist.
func (e *Engine) OpenDocument(ctx context.Context, id doc.Identifier) (*doc.Document, error) {
	var fetched doc.Document
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var inner error
		fetched, inner = e.remote.FetchDocument(ctx, id)
		if errors.Is(inner, store.ErrNotFound) {
			return nil
		}
		return inner
	})
	if err != nil {
		return nil, err
	}
	if fetched.ID.IsZero() {
		return nil, nil
	}
	e.local.Open(&fetched)
	snap, _ := e.local.Snapshot(fetched.ID)
	return snap, nil
}

// CloseDocument releases the document's local state and identity mappings.
func (e *Engine) CloseDocument(id doc.Identifier) {
	e.local.Close(id)
	e.ids.Forget(id)
}

// Refresh re-fetches the document and merges the result over local state.
// Pending local edits survive; this is the only path by which fetched data
// may touch a dirty document.
func (e *Engine) Refresh(ctx context.Context, id doc.Identifier) (*doc.Document, error) {
	// Creations in flight when the fetch starts may be acknowledged, and
	// their ids swapped to durable, before it returns. The snapshot then
	// predates the acknowledgement, so those elements must survive the
	// merge under either id.
	inflight := e.pending.forDocument(id)

	var fetched doc.Document
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var inner error
		fetched, inner = e.remote.FetchDocument(ctx, id)
		return inner
	})
	if err != nil {
		return nil, err
	}
	localSnap, ok := e.local.Snapshot(id)
	if !ok {
		e.local.Open(&fetched)
		snap, _ := e.local.Snapshot(fetched.ID)
		return snap, nil
	}

	keep := make(map[string]bool, 2*len(inflight))
	for _, eph := range inflight {
		keep[eph.Token] = true
		if r := e.ids.Resolve(eph); !r.IsEphemeral() {
			keep[r.Token] = true
		}
	}

	merged := Merge(localSnap, &fetched, keep)
	e.local.Replace(merged)
	snap, _ := e.local.Snapshot(id)
	return snap, nil
}

// ListDocuments lists document summaries with read retries.
func (e *Engine) ListDocuments(ctx context.Context) ([]doc.Summary, error) {
	var list []doc.Summary
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var inner error
		list, inner = e.remote.ListDocuments(ctx)
		return inner
	})
	return list, err
}

// Snapshot returns a deep copy of the current local document state.
func (e *Engine) Snapshot(id doc.Identifier) (*doc.Document, bool) {
	return e.local.Snapshot(id)
}

// Dirty reports whether the document has unresolved remote calls.
func (e *Engine) Dirty(id doc.Identifier) bool {
	return e.local.Dirty(id)
}

// Subscribe returns the document's local change feed.
func (e *Engine) Subscribe(id doc.Identifier) (<-chan local.ChangeEvent, func()) {
	return e.local.Subscribe(id)
}

// UpdateDocument applies a document-level patch optimistically.
func (e *Engine) UpdateDocument(id doc.Identifier, patch doc.DocumentPatch, opts ...MutateOption) error {
	if patch.Status != nil {
		if err := e.validator.ValidateStatus(*patch.Status); err != nil {
			return NewValidationError(id.String(), "invalid status", err)
		}
	}
	if patch.IsEmpty() || !e.local.ApplyDocument(id, patch) {
		return nil
	}
	if applyOpts(opts).localOnly {
		return nil
	}
	e.dispatch("update_document", id, doc.Identifier{}, func(ctx context.Context) error {
		return e.remote.UpdateDocument(ctx, id, patch)
	})
	return nil
}

// DeleteDocument removes the document locally and remotely.
func (e *Engine) DeleteDocument(id doc.Identifier) {
	e.local.Close(id)
	e.ids.Forget(id)
	e.dispatch("delete_document", id, doc.Identifier{}, func(ctx context.Context) error {
		return e.remote.DeleteDocument(ctx, id)
	})
}

// UpdateSection applies a section patch, creating the section lazily when
// the key does not exist yet.
func (e *Engine) UpdateSection(id doc.Identifier, key doc.SectionKey, patch doc.SectionPatch, opts ...MutateOption) error {
	if err := e.validator.ValidateSectionKey(key); err != nil {
		return NewValidationError(id.String(), "invalid section key", err)
	}
	if !e.local.ApplySection(id, key, patch) {
		return nil
	}
	if applyOpts(opts).localOnly {
		return nil
	}
	e.dispatch("upsert_section", id, doc.Identifier{}, func(ctx context.Context) error {
		return e.remote.UpsertSection(ctx, id, key, patch)
	})
	return nil
}

// RemoveSection deletes a section and its elements.
func (e *Engine) RemoveSection(id doc.Identifier, key doc.SectionKey, opts ...MutateOption) {
	if !e.local.RemoveSection(id, key) {
		return
	}
	if applyOpts(opts).localOnly {
		return
	}
	e.dispatch("delete_section", id, doc.Identifier{}, func(ctx context.Context) error {
		return e.remote.DeleteSection(ctx, id, key)
	})
}

// SetSectionOrder rewrites the section ordering.
func (e *Engine) SetSectionOrder(id doc.Identifier, order []doc.SectionKey, opts ...MutateOption) error {
	for _, key := range order {
		if err := e.validator.ValidateSectionKey(key); err != nil {
			return NewValidationError(id.String(), "invalid section key in order", err)
		}
	}
	if !e.local.SetSectionOrder(id, order) {
		return nil
	}
	if applyOpts(opts).localOnly {
		return nil
	}
	e.dispatch("set_section_order", id, doc.Identifier{}, func(ctx context.Context) error {
		return e.remote.SetSectionOrder(ctx, id, order)
	})
	return nil
}

// CreateElement inserts a new element under an ephemeral id, dispatches
// the creation and returns the ephemeral id immediately. The durable id
// arrives via the Run loop, which swaps it in place.
func (e *Engine) CreateElement(id doc.Identifier, key doc.SectionKey, el doc.Element) (doc.Identifier, error) {
	if err := e.validator.ValidateSectionKey(key); err != nil {
		return doc.Identifier{}, NewValidationError(id.String(), "invalid section key", err)
	}
	if err := e.validator.ValidateElement(el.Kind, el.Payload); err != nil {
		return doc.Identifier{}, NewValidationError(id.String(), "invalid element payload", err)
	}
	eph := doc.NewEphemeralID()
	el.ID = eph
	if !e.local.InsertElement(id, key, el) {
		return doc.Identifier{}, NewValidationError(id.String(), "document not open", nil)
	}
	e.local.MarkDirty(id)

	seq := e.clock.Next()
	sent := el.Clone()
	e.pending.add(eph, &pendingCreate{seq: seq, docID: id, section: key, sent: sent})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		durable, err := e.remote.CreateElement(ctx, id, key, sent)
		e.queue.Enqueue(completion{
			Kind:        completionCreateElement,
			Seq:         seq,
			DocID:       id,
			EphemeralID: eph,
			DurableID:   durable,
			SentState:   sent,
			Err:         err,
		})
	}()
	return eph, nil
}

// UpdateElement applies an element patch optimistically. The id is
// resolved before the local apply: callers may keep addressing an element
// by its ephemeral id after the durable one has been swapped in. When the
// resolved id is still ephemeral the network call is skipped entirely:
// the create's drift reconciliation will carry the current values once
// the durable id is known.
func (e *Engine) UpdateElement(id doc.Identifier, elemID doc.Identifier, patch doc.ElementPatch, opts ...MutateOption) error {
	elemID = e.ids.Resolve(elemID)
	if patch.Payload != nil {
		el, _, ok := e.local.ElementByID(id, elemID)
		if ok {
			if err := e.validator.ValidateElement(el.Kind, *patch.Payload); err != nil {
				return NewValidationError(id.String(), "invalid element payload", err)
			}
		}
	}
	if patch.IsEmpty() || !e.local.ApplyElement(id, elemID, patch) {
		return nil
	}
	if applyOpts(opts).localOnly {
		return nil
	}
	if elemID.IsEphemeral() {
		return nil
	}
	target := elemID
	e.dispatch("update_element", id, target, func(ctx context.Context) error {
		return e.remote.UpdateElement(ctx, id, target, patch)
	})
	return nil
}

// DeleteElement removes an element locally, then remotely. The id is
// resolved before the local remove. Deleting an element whose creation is
// still in flight defers the remote delete to the create's completion.
func (e *Engine) DeleteElement(id doc.Identifier, elemID doc.Identifier, opts ...MutateOption) {
	elemID = e.ids.Resolve(elemID)
	if !e.local.RemoveElement(id, elemID) {
		return
	}
	if applyOpts(opts).localOnly {
		return
	}
	if elemID.IsEphemeral() {
		if e.pending.markDeleted(elemID) {
			// The create completion will issue the remote delete.
			return
		}
		// The create resolved between the first lookup and the mark. The
		// durable id is bound before the pending entry is taken, so a
		// second resolve finds it unless the create failed outright.
		elemID = e.ids.Resolve(elemID)
		if elemID.IsEphemeral() {
			return
		}
	}
	target := elemID
	e.dispatch("delete_element", id, target, func(ctx context.Context) error {
		return e.remote.DeleteElement(ctx, id, target)
	})
}

// SwapElementZ exchanges the z indexes of two sibling elements. The swap
// is applied locally first; the network call is skipped while either id is
// still ephemeral, drift reconciliation carries the z value then.
func (e *Engine) SwapElementZ(id doc.Identifier, a, b doc.Identifier, opts ...MutateOption) error {
	a, b = e.ids.Resolve(a), e.ids.Resolve(b)
	ea, keyA, okA := e.local.ElementByID(id, a)
	eb, keyB, okB := e.local.ElementByID(id, b)
	if !okA || !okB {
		return NewValidationError(id.String(), "swap target not found", nil)
	}
	if keyA != keyB {
		return NewValidationError(id.String(), "swap targets are not siblings", nil)
	}
	za, zb := ea.ZIndex, eb.ZIndex
	e.local.ApplyElement(id, a, doc.ElementPatch{ZIndex: &zb})
	e.local.ApplyElement(id, b, doc.ElementPatch{ZIndex: &za})
	if applyOpts(opts).localOnly {
		return nil
	}
	if a.IsEphemeral() || b.IsEphemeral() {
		return nil
	}
	e.dispatch("swap_element_z", id, a, func(ctx context.Context) error {
		return e.remote.SwapElementZ(ctx, id, a, b)
	})
	return nil
}

// dispatch runs a write call in a goroutine and delivers its result to the
// Run loop. Writes are never retried; failures are logged by the handler.
func (e *Engine) dispatch(op string, docID, entityID doc.Identifier, fn func(context.Context) error) {
	e.local.MarkDirty(docID)
	seq := e.clock.Next()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		err := fn(ctx)
		e.queue.Enqueue(completion{
			Kind:     completionWrite,
			Seq:      seq,
			DocID:    docID,
			Op:       op,
			EntityID: entityID,
			Err:      err,
		})
	}()
}

// handle processes one completion on the Run loop.
func (e *Engine) handle(c completion) {
	switch c.Kind {
	case completionCreateElement:
		e.handleCreateElement(c)
	case completionWrite:
		e.handleWrite(c)
	}
}

func (e *Engine) handleWrite(c completion) {
	defer e.local.ResolveDirty(c.DocID)
	if c.Err == nil {
		return
	}
	code := ErrCodeWriteFailed
	if c.Op == "drift_sync" {
		code = ErrCodeDriftSyncFailed
	}
	// Local-first: the optimistic apply stands, nothing is rolled back.
	serr := &SyncError{
		Code:     code,
		Message:  "remote write failed after optimistic apply",
		DocID:    c.DocID.Token,
		EntityID: c.EntityID.String(),
		Err:      c.Err,
	}
	e.logger.Error("write failed", "op", c.Op, "seq", c.Seq, "error", serr)
}

func (e *Engine) handleCreateElement(c completion) {
	defer e.local.ResolveDirty(c.DocID)

	if c.Err != nil {
		e.pending.take(c.EphemeralID)
		serr := &SyncError{
			Code:     ErrCodeWriteFailed,
			Message:  "element creation failed",
			DocID:    c.DocID.Token,
			EntityID: c.EphemeralID.String(),
			Err:      c.Err,
		}
		e.logger.Error("create failed", "seq", c.Seq, "error", serr)
		return
	}

	bound := e.ids.Bind(c.DocID, c.EphemeralID, c.DurableID)

	// The pending entry is taken only after the identity is bound. A
	// delete racing with this completion either marks the entry while it
	// is still pending, or resolves to the durable id and issues its own
	// remote delete.
	pc, ok := e.pending.take(c.EphemeralID)
	if !bound {
		// Duplicate response; the first mapping stands and already did
		// the swap and drift sync.
		return
	}

	if ok && pc.deleted {
		// Element was removed locally before the create resolved.
		e.dispatch("delete_element", c.DocID, c.DurableID, func(ctx context.Context) error {
			return e.remote.DeleteElement(ctx, c.DocID, c.DurableID)
		})
		return
	}

	// Re-read the current local state, never a stale closure.
	current, _, exists := e.local.ElementByID(c.DocID, c.EphemeralID)
	if exists {
		if drift := doc.DiffElements(c.SentState, current); !drift.IsEmpty() {
			durable := c.DurableID
			e.dispatch("drift_sync", c.DocID, durable, func(ctx context.Context) error {
				return e.remote.UpdateElement(ctx, c.DocID, durable, drift)
			})
		}
	}
	e.local.SwapElementID(c.DocID, c.EphemeralID, c.DurableID)
}
