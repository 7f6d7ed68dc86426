// Package doc provides the data model for invitation templates.
//
// This package contains type definitions and pure functions only. All other
// internal packages import doc; doc imports nothing internal. This keeps the
// model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Identifiers are an explicit sum type (ephemeral | durable), never
//     inferred downstream from string shape
//   - Section keys come from a closed, validated set
//   - Optional scalar fields are pointers so "absent" is distinguishable
//     from the zero value (this is what makes field-level merge possible)
//   - All JSON tags use snake_case
package doc
