package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// CreateDocument inserts a new document and returns it with its
// server-assigned durable id. Name is required; validation happens before
// this point, the store only enforces its own constraints.
func (s *Store) CreateDocument(ctx context.Context, name string) (*doc.Document, error) {
	if name == "" {
		return nil, fmt.Errorf("create document: name is required")
	}

	now := time.Now().UTC()
	d := &doc.Document{
		ID:           doc.NewDurableID(),
		Name:         name,
		Status:       doc.StatusDraft,
		Sections:     map[doc.SectionKey]doc.Section{},
		SectionOrder: []doc.SectionKey{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, slug, status, theme, section_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, '{}', '[]', ?, ?)
	`,
		d.ID.Token, d.Name, nullableString(d.Slug), string(d.Status),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	return d, nil
}

// UpdateDocument applies a partial update to document-level fields.
// The current row is re-read inside the transaction immediately before
// writing so a patch never clobbers fields it does not carry.
func (s *Store) UpdateDocument(ctx context.Context, id doc.Identifier, patch doc.DocumentPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		d, err := readDocumentRow(ctx, tx, id.Token)
		if err != nil {
			return err
		}
		patch.Apply(d)

		theme, err := marshalJSONMap(d.Theme)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE documents
			SET name = ?, slug = ?, status = ?, theme = ?, updated_at = ?
			WHERE id = ?
		`,
			d.Name, nullableString(d.Slug), string(d.Status), theme,
			time.Now().UTC().Format(time.RFC3339Nano), id.Token,
		)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil
	})
}

// DeleteDocument removes a document. Sections and elements cascade via
// foreign keys.
func (s *Store) DeleteDocument(ctx context.Context, id doc.Identifier) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id.Token)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete document %s: %w", id.Token, ErrNotFound)
	}
	return nil
}

// UpsertSection creates the section if absent, else applies the patch.
// A newly created section key is appended to the document's section order.
func (s *Store) UpsertSection(ctx context.Context, docID doc.Identifier, key doc.SectionKey, patch doc.SectionPatch) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := documentExists(ctx, tx, docID.Token); err != nil {
			return err
		}
		created, err := ensureSection(ctx, tx, docID.Token, key)
		if err != nil {
			return err
		}
		if created {
			if err := appendSectionOrder(ctx, tx, docID.Token, key); err != nil {
				return err
			}
		}
		if patch.IsEmpty() {
			return touchDocument(ctx, tx, docID.Token)
		}

		sec, err := readSectionRow(ctx, tx, docID.Token, key)
		if err != nil {
			return err
		}
		patch.Apply(sec)

		_, err = tx.ExecContext(ctx, `
			UPDATE sections SET title = ?, background = ?, visible = ?
			WHERE document_id = ? AND key = ?
		`,
			nullablePtr(sec.Title), nullablePtr(sec.Background), nullableBool(sec.Visible),
			docID.Token, string(key),
		)
		if err != nil {
			return fmt.Errorf("upsert section: %w", err)
		}
		return touchDocument(ctx, tx, docID.Token)
	})
}

// DeleteSection removes a section and its elements, and drops the key from
// the document's section order.
func (s *Store) DeleteSection(ctx context.Context, docID doc.Identifier, key doc.SectionKey) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM sections WHERE document_id = ? AND key = ?
		`, docID.Token, string(key))
		if err != nil {
			return fmt.Errorf("delete section: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete section: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("delete section %s/%s: %w", docID.Token, key, ErrNotFound)
		}
		if err := removeSectionOrder(ctx, tx, docID.Token, key); err != nil {
			return err
		}
		return touchDocument(ctx, tx, docID.Token)
	})
}

// SetSectionOrder replaces the explicit ordering list of section keys.
func (s *Store) SetSectionOrder(ctx context.Context, docID doc.Identifier, order []doc.SectionKey) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := documentExists(ctx, tx, docID.Token); err != nil {
			return err
		}
		data, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("set section order: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET section_order = ?, updated_at = ? WHERE id = ?
		`, string(data), time.Now().UTC().Format(time.RFC3339Nano), docID.Token)
		if err != nil {
			return fmt.Errorf("set section order: %w", err)
		}
		return nil
	})
}

// CreateElement inserts an element and returns its server-assigned durable
// id. The parent section is created lazily if this is the first mutation
// addressed to its key.
func (s *Store) CreateElement(ctx context.Context, docID doc.Identifier, key doc.SectionKey, el doc.Element) (doc.Identifier, error) {
	id := doc.NewDurableID()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := documentExists(ctx, tx, docID.Token); err != nil {
			return err
		}
		created, err := ensureSection(ctx, tx, docID.Token, key)
		if err != nil {
			return err
		}
		if created {
			if err := appendSectionOrder(ctx, tx, docID.Token, key); err != nil {
				return err
			}
		}

		payload, err := marshalJSONMap(el.Payload)
		if err != nil {
			return fmt.Errorf("create element: %w", err)
		}
		animation, err := marshalAnimation(el.Animation)
		if err != nil {
			return fmt.Errorf("create element: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO elements (id, document_id, section_key, kind, x, y, w, h, z_index, payload, animation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id.Token, docID.Token, string(key), string(el.Kind),
			el.X, el.Y, el.W, el.H, el.ZIndex, payload, animation,
		)
		if err != nil {
			return fmt.Errorf("create element: %w", err)
		}
		return touchDocument(ctx, tx, docID.Token)
	})
	if err != nil {
		return doc.Identifier{}, err
	}
	return id, nil
}

// UpdateElement applies a partial update to an element addressed by its
// durable id. The current row is re-read inside the transaction before
// writing.
func (s *Store) UpdateElement(ctx context.Context, id doc.Identifier, patch doc.ElementPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		el, docToken, err := readElementRow(ctx, tx, id.Token)
		if err != nil {
			return err
		}
		patch.Apply(el)

		payload, err := marshalJSONMap(el.Payload)
		if err != nil {
			return fmt.Errorf("update element: %w", err)
		}
		animation, err := marshalAnimation(el.Animation)
		if err != nil {
			return fmt.Errorf("update element: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE elements SET x = ?, y = ?, w = ?, h = ?, z_index = ?, payload = ?, animation = ?
			WHERE id = ?
		`, el.X, el.Y, el.W, el.H, el.ZIndex, payload, animation, id.Token)
		if err != nil {
			return fmt.Errorf("update element: %w", err)
		}
		return touchDocument(ctx, tx, docToken)
	})
}

// DeleteElement removes an element by durable id.
func (s *Store) DeleteElement(ctx context.Context, id doc.Identifier) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var docToken string
		err := tx.QueryRowContext(ctx, `SELECT document_id FROM elements WHERE id = ?`, id.Token).Scan(&docToken)
		if err == sql.ErrNoRows {
			return fmt.Errorf("delete element %s: %w", id.Token, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("delete element: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE id = ?`, id.Token); err != nil {
			return fmt.Errorf("delete element: %w", err)
		}
		return touchDocument(ctx, tx, docToken)
	})
}

// SwapElementZ exchanges the z_index values of two elements atomically.
// This preserves the observed swap-based reorder behavior; it does not
// maintain a dense rank, so duplicate z values elsewhere survive a swap.
func (s *Store) SwapElementZ(ctx context.Context, a, b doc.Identifier) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		ea, docToken, err := readElementRow(ctx, tx, a.Token)
		if err != nil {
			return err
		}
		eb, _, err := readElementRow(ctx, tx, b.Token)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE elements SET z_index = ? WHERE id = ?`, eb.ZIndex, a.Token); err != nil {
			return fmt.Errorf("swap z: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE elements SET z_index = ? WHERE id = ?`, ea.ZIndex, b.Token); err != nil {
			return fmt.Errorf("swap z: %w", err)
		}
		return touchDocument(ctx, tx, docToken)
	})
}

// ensureSection inserts a bare section row if missing.
// Returns true when a new row was created.
func ensureSection(ctx context.Context, tx *sql.Tx, docToken string, key doc.SectionKey) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sections (document_id, key) VALUES (?, ?)
		ON CONFLICT(document_id, key) DO NOTHING
	`, docToken, string(key))
	if err != nil {
		return false, fmt.Errorf("ensure section: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure section: %w", err)
	}
	return n > 0, nil
}

func appendSectionOrder(ctx context.Context, tx *sql.Tx, docToken string, key doc.SectionKey) error {
	order, err := readSectionOrder(ctx, tx, docToken)
	if err != nil {
		return err
	}
	for _, k := range order {
		if k == key {
			return nil
		}
	}
	order = append(order, key)
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("append section order: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET section_order = ? WHERE id = ?`, string(data), docToken); err != nil {
		return fmt.Errorf("append section order: %w", err)
	}
	return nil
}

func removeSectionOrder(ctx context.Context, tx *sql.Tx, docToken string, key doc.SectionKey) error {
	order, err := readSectionOrder(ctx, tx, docToken)
	if err != nil {
		return err
	}
	out := order[:0]
	for _, k := range order {
		if k != key {
			out = append(out, k)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("remove section order: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET section_order = ? WHERE id = ?`, string(data), docToken); err != nil {
		return fmt.Errorf("remove section order: %w", err)
	}
	return nil
}

func touchDocument(ctx context.Context, tx *sql.Tx, docToken string) error {
	_, err := tx.ExecContext(ctx, `UPDATE documents SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), docToken)
	if err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	return nil
}

func documentExists(ctx context.Context, tx *sql.Tx, docToken string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, docToken).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("document %s: %w", docToken, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("document exists: %w", err)
	}
	return nil
}
