package doc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IDKind distinguishes ephemeral from durable identifiers.
type IDKind int

const (
	// KindEphemeral marks a client-generated, session-local identifier that
	// stands in for an entity until the store assigns a durable one.
	KindEphemeral IDKind = iota + 1
	// KindDurable marks a store-assigned, globally stable identifier.
	KindDurable
)

// ephemeralPrefix is the wire prefix for ephemeral tokens. It exists only at
// the serialization boundary; in-memory code must branch on Kind, never on
// the token string.
const ephemeralPrefix = "tmp_"

// Identifier identifies an Element or a dynamically created Section.
//
// Exactly one durable identifier ever exists per real-world entity, and at
// most one ephemeral identifier maps to it during its lifetime. The kind is
// carried explicitly alongside the token rather than inferred from string
// shape.
type Identifier struct {
	Kind  IDKind
	Token string
}

// NewEphemeralID generates a fresh session-local identifier.
func NewEphemeralID() Identifier {
	return Identifier{Kind: KindEphemeral, Token: uuid.Must(uuid.NewV7()).String()}
}

// NewDurableID generates a store-assigned identifier.
//
// UUIDv7 embeds a timestamp in the most significant bits, making ids
// sortable by creation time.
func NewDurableID() Identifier {
	return Identifier{Kind: KindDurable, Token: uuid.Must(uuid.NewV7()).String()}
}

// DurableID wraps an existing durable token.
func DurableID(token string) Identifier {
	return Identifier{Kind: KindDurable, Token: token}
}

// IsZero reports whether the identifier is unset.
func (id Identifier) IsZero() bool {
	return id.Kind == 0 && id.Token == ""
}

// IsEphemeral reports whether the identifier is session-local.
func (id Identifier) IsEphemeral() bool {
	return id.Kind == KindEphemeral
}

// String renders the wire form: ephemeral tokens carry the "tmp_" prefix,
// durable tokens are the raw token.
func (id Identifier) String() string {
	if id.Kind == KindEphemeral {
		return ephemeralPrefix + id.Token
	}
	return id.Token
}

// ParseIdentifier restores the explicit kind from the wire form.
func ParseIdentifier(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, fmt.Errorf("empty identifier")
	}
	if rest, ok := strings.CutPrefix(s, ephemeralPrefix); ok {
		if rest == "" {
			return Identifier{}, fmt.Errorf("empty ephemeral token")
		}
		return Identifier{Kind: KindEphemeral, Token: rest}, nil
	}
	return Identifier{Kind: KindDurable, Token: s}, nil
}

// MarshalJSON implements json.Marshaler using the wire form.
func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentifier(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
