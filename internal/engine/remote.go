package engine

import (
	"context"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// Remote is the durable side of the sync engine. In production it is the
// HTTP gateway; tests substitute an in-memory fake.
//
// All write methods take durable identifiers. Translating ephemeral ids
// is the engine's job, never the remote's.
type Remote interface {
	CreateDocument(ctx context.Context, d doc.Document) (doc.Document, error)
	FetchDocument(ctx context.Context, id doc.Identifier) (doc.Document, error)
	UpdateDocument(ctx context.Context, id doc.Identifier, patch doc.DocumentPatch) error
	DeleteDocument(ctx context.Context, id doc.Identifier) error
	ListDocuments(ctx context.Context) ([]doc.Summary, error)

	UpsertSection(ctx context.Context, docID doc.Identifier, key doc.SectionKey, patch doc.SectionPatch) error
	DeleteSection(ctx context.Context, docID doc.Identifier, key doc.SectionKey) error
	SetSectionOrder(ctx context.Context, docID doc.Identifier, order []doc.SectionKey) error

	// CreateElement returns the durable identifier minted by the store.
	CreateElement(ctx context.Context, docID doc.Identifier, key doc.SectionKey, e doc.Element) (doc.Identifier, error)
	UpdateElement(ctx context.Context, docID, elementID doc.Identifier, patch doc.ElementPatch) error
	DeleteElement(ctx context.Context, docID, elementID doc.Identifier) error
	SwapElementZ(ctx context.Context, docID, a, b doc.Identifier) error
}
