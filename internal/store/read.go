package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// querier abstracts *sql.DB and *sql.Tx so row readers work in both.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetDocument returns the full document with nested sections and elements.
// Returns ErrNotFound if the document does not exist.
//
// Elements are ordered deterministically: z_index ASC, id ASC. Duplicate
// z values (possible after repeated swap-based reorders) fall back to id
// order so rendering stays stable.
func (s *Store) GetDocument(ctx context.Context, id doc.Identifier) (*doc.Document, error) {
	return getDocument(ctx, s.db, id.Token)
}

// GetPublishedBySlug returns the published projection of a document.
// Draft documents are invisible through this read path.
func (s *Store) GetPublishedBySlug(ctx context.Context, slug string) (*doc.Document, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM documents WHERE slug = ? AND status = 'published'
	`, slug).Scan(&token)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document slug %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get by slug: %w", err)
	}
	return getDocument(ctx, s.db, token)
}

// ListDocuments returns summaries of all documents, most recently updated
// first. Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListDocuments(ctx context.Context) ([]doc.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, status, updated_at
		FROM documents
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	summaries := []doc.Summary{}
	for rows.Next() {
		var (
			token, name, status, updatedAt string
			slug                           sql.NullString
		)
		if err := rows.Scan(&token, &name, &slug, &status, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		summaries = append(summaries, doc.Summary{
			ID:        doc.DurableID(token),
			Name:      name,
			Slug:      slug.String,
			Status:    doc.Status(status),
			UpdatedAt: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

func getDocument(ctx context.Context, q querier, token string) (*doc.Document, error) {
	d, err := readDocumentRowQ(ctx, q, token)
	if err != nil {
		return nil, err
	}

	sections, err := readSections(ctx, q, token)
	if err != nil {
		return nil, err
	}
	d.Sections = sections

	if err := readElements(ctx, q, token, d.Sections); err != nil {
		return nil, err
	}
	return d, nil
}

// readDocumentRow reads document-level fields inside a transaction.
func readDocumentRow(ctx context.Context, tx *sql.Tx, token string) (*doc.Document, error) {
	return readDocumentRowQ(ctx, tx, token)
}

func readDocumentRowQ(ctx context.Context, q querier, token string) (*doc.Document, error) {
	var (
		name, status, themeJSON, orderJSON, createdAt, updatedAt string
		slug                                                     sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT name, slug, status, theme, section_order, created_at, updated_at
		FROM documents WHERE id = ?
	`, token).Scan(&name, &slug, &status, &themeJSON, &orderJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	theme, err := unmarshalJSONMap(themeJSON)
	if err != nil {
		return nil, fmt.Errorf("read document theme: %w", err)
	}
	var order []doc.SectionKey
	if err := json.Unmarshal([]byte(orderJSON), &order); err != nil {
		return nil, fmt.Errorf("read section order: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &doc.Document{
		ID:           doc.DurableID(token),
		Name:         name,
		Slug:         slug.String,
		Status:       doc.Status(status),
		Theme:        theme,
		Sections:     map[doc.SectionKey]doc.Section{},
		SectionOrder: order,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

func readSections(ctx context.Context, q querier, token string) (map[doc.SectionKey]doc.Section, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT key, title, background, visible
		FROM sections WHERE document_id = ?
		ORDER BY key ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read sections: %w", err)
	}
	defer rows.Close()

	sections := map[doc.SectionKey]doc.Section{}
	for rows.Next() {
		var (
			key               sql.NullString
			title, background sql.NullString
			visible           sql.NullInt64
		)
		if err := rows.Scan(&key, &title, &background, &visible); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		k := doc.SectionKey(key.String)
		sections[k] = doc.Section{
			Key:        k,
			Title:      ptrFromNullString(title),
			Background: ptrFromNullString(background),
			Visible:    ptrFromNullBool(visible),
			Elements:   []doc.Element{},
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return sections, nil
}

func readElements(ctx context.Context, q querier, token string, sections map[doc.SectionKey]doc.Section) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, section_key, kind, x, y, w, h, z_index, payload, animation
		FROM elements WHERE document_id = ?
		ORDER BY z_index ASC, id ASC
	`, token)
	if err != nil {
		return fmt.Errorf("read elements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		el, sectionKey, err := scanElement(rows)
		if err != nil {
			return err
		}
		sec, ok := sections[sectionKey]
		if !ok {
			// Orphan guard: FK constraints should make this unreachable
			continue
		}
		sec.Elements = append(sec.Elements, el)
		sections[sectionKey] = sec
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate elements: %w", err)
	}
	return nil
}

func scanElement(rows *sql.Rows) (doc.Element, doc.SectionKey, error) {
	var (
		id, sectionKey, kind, payloadJSON string
		x, y, w, h, z                     int
		animation                         sql.NullString
	)
	if err := rows.Scan(&id, &sectionKey, &kind, &x, &y, &w, &h, &z, &payloadJSON, &animation); err != nil {
		return doc.Element{}, "", fmt.Errorf("scan element: %w", err)
	}
	payload, err := unmarshalJSONMap(payloadJSON)
	if err != nil {
		return doc.Element{}, "", fmt.Errorf("element payload: %w", err)
	}
	anim, err := unmarshalAnimation(animation)
	if err != nil {
		return doc.Element{}, "", fmt.Errorf("element animation: %w", err)
	}
	return doc.Element{
		ID:   doc.DurableID(id),
		Kind: doc.ElementKind(kind),
		X:    x, Y: y, W: w, H: h,
		ZIndex:    z,
		Payload:   payload,
		Animation: anim,
	}, doc.SectionKey(sectionKey), nil
}

// readSectionRow reads one section's scalar fields inside a transaction.
func readSectionRow(ctx context.Context, tx *sql.Tx, docToken string, key doc.SectionKey) (*doc.Section, error) {
	var (
		title, background sql.NullString
		visible           sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT title, background, visible FROM sections
		WHERE document_id = ? AND key = ?
	`, docToken, string(key)).Scan(&title, &background, &visible)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("section %s/%s: %w", docToken, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read section: %w", err)
	}
	return &doc.Section{
		Key:        key,
		Title:      ptrFromNullString(title),
		Background: ptrFromNullString(background),
		Visible:    ptrFromNullBool(visible),
	}, nil
}

// readElementRow reads one element inside a transaction, returning the
// owning document token for invalidation bookkeeping.
func readElementRow(ctx context.Context, tx *sql.Tx, token string) (*doc.Element, string, error) {
	var (
		docToken, kind, payloadJSON string
		x, y, w, h, z               int
		animation                   sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		SELECT document_id, kind, x, y, w, h, z_index, payload, animation
		FROM elements WHERE id = ?
	`, token).Scan(&docToken, &kind, &x, &y, &w, &h, &z, &payloadJSON, &animation)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("element %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read element: %w", err)
	}
	payload, err := unmarshalJSONMap(payloadJSON)
	if err != nil {
		return nil, "", fmt.Errorf("element payload: %w", err)
	}
	anim, err := unmarshalAnimation(animation)
	if err != nil {
		return nil, "", fmt.Errorf("element animation: %w", err)
	}
	return &doc.Element{
		ID:   doc.DurableID(token),
		Kind: doc.ElementKind(kind),
		X:    x, Y: y, W: w, H: h,
		ZIndex:    z,
		Payload:   payload,
		Animation: anim,
	}, docToken, nil
}

// readSectionOrder reads the ordering list inside a transaction.
func readSectionOrder(ctx context.Context, tx *sql.Tx, docToken string) ([]doc.SectionKey, error) {
	var orderJSON string
	err := tx.QueryRowContext(ctx, `SELECT section_order FROM documents WHERE id = ?`, docToken).Scan(&orderJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", docToken, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read section order: %w", err)
	}
	var order []doc.SectionKey
	if err := json.Unmarshal([]byte(orderJSON), &order); err != nil {
		return nil, fmt.Errorf("parse section order: %w", err)
	}
	return order, nil
}

// GetElement returns a single element by durable id.
func (s *Store) GetElement(ctx context.Context, id doc.Identifier) (*doc.Element, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("get element: %w", err)
	}
	defer tx.Rollback()

	el, _, err := readElementRow(ctx, tx, id.Token)
	if err != nil {
		return nil, err
	}
	return el, nil
}
