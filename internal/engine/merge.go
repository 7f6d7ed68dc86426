package engine

import (
	"github.com/aivexl/tamuu-sub000/internal/doc"
)

// Merge reconciles a fetched snapshot with the local state of the same
// document so a refresh is safe while unsynced edits exist.
//
// Rules, per section present in both snapshots:
//   - section scalars: the local value wins whenever it is set, otherwise
//     the fetched value is used (last-local-wins per field, not per
//     section);
//   - elements: the fetched list is authoritative for membership, with
//     each fetched element overlaid by the local counterpart's fields;
//   - local elements absent from the fetched list whose id is still
//     ephemeral are creations in flight and are appended, never dropped;
//   - keep lists element tokens whose creations were in flight when the
//     fetch started. Those elements are preserved even under a durable
//     id: the snapshot may predate the acknowledgement that swapped the
//     id in.
//
// Sections that exist only locally are kept wholesale for the same
// reason. Document scalars come from the fetched snapshot; they are
// synced by their own update requests and carry no absence marker.
//
// Merge is idempotent for a stable fetched snapshot and never mutates
// its inputs.
func Merge(local, fetched *doc.Document, keep map[string]bool) *doc.Document {
	if local == nil {
		return fetched.Clone()
	}
	out := fetched.Clone()

	for key, fs := range out.Sections {
		ls, ok := local.Sections[key]
		if !ok {
			continue
		}
		out.Sections[key] = mergeSection(ls, fs, keep)
	}

	// Local-only sections are unsynced creations.
	for key, ls := range local.Sections {
		if _, ok := out.Sections[key]; ok {
			continue
		}
		out.Sections[key] = ls.Clone()
		out.SectionOrder = append(out.SectionOrder, key)
	}

	return out
}

func mergeSection(local, fetched doc.Section, keep map[string]bool) doc.Section {
	out := fetched.Clone()
	if local.Title != nil {
		t := *local.Title
		out.Title = &t
	}
	if local.Background != nil {
		b := *local.Background
		out.Background = &b
	}
	if local.Visible != nil {
		v := *local.Visible
		out.Visible = &v
	}

	for i, fe := range out.Elements {
		if j := local.FindElement(fe.ID); j >= 0 {
			out.Elements[i] = overlayElement(fe, local.Elements[j])
		}
	}

	// Creations still in flight, or acknowledged after the fetch started:
	// present locally, unknown to the fetched snapshot.
	for _, le := range local.Elements {
		if !le.ID.IsEphemeral() && !keep[le.ID.Token] {
			continue
		}
		if fetched.FindElement(le.ID) >= 0 {
			continue
		}
		out.Elements = append(out.Elements, le.Clone())
	}

	return out
}

// overlayElement applies every local field over the fetched base. Local
// state always reflects the most recent edit, so local wins wholesale at
// the element level; the fetched element only contributes when no local
// counterpart exists at all.
func overlayElement(fetched, local doc.Element) doc.Element {
	out := local.Clone()
	out.ID = fetched.ID
	if out.Payload == nil {
		out.Payload = cloneAnyMap(fetched.Payload)
	}
	if out.Animation == nil && fetched.Animation != nil {
		anim := *fetched.Animation
		out.Animation = &anim
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := doc.Element{Payload: m}.Clone()
	return clone.Payload
}
