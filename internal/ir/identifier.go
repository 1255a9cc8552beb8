package ir

import (
	"fmt"

	"kansoc/internal/errors"
)

// SourceSpan locates an IR node in its source text. The zero span means the
// node has no source location.
type SourceSpan struct {
	Start  int // byte offset of the first character
	End    int // byte offset just past the last character
	Line   int // 1-based
	Column int // 1-based
}

// IsZero reports whether the span carries no location
func (s SourceSpan) IsZero() bool {
	return s == SourceSpan{}
}

// Position converts the span start into an error position
func (s SourceSpan) Position() errors.Position {
	return errors.Position{Offset: s.Start, Line: s.Line, Column: s.Column}
}

// IdentifierKind classifies what an identifier names
type IdentifierKind int

const (
	KindGlobal       IdentifierKind = iota // contract field or function
	KindLocal                              // parameter or named local
	KindTypeName                           // reference to or definition of a type
	KindIntermediate                       // virtual register
	KindBlockLabel                         // block label
)

func (k IdentifierKind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindLocal:
		return "local"
	case KindTypeName:
		return "type"
	case KindIntermediate:
		return "intermediate"
	case KindBlockLabel:
		return "label"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Identifier is a name flowing through the IR. Every use of a value is its
// own Identifier so passes can annotate uses independently of definitions.
type Identifier struct {
	UnresolvedName string
	ResolvedName   string      // empty until name resolution; single assignment
	Type           *Identifier // KindTypeName reference, nil until known
	Kind           IdentifierKind
	IsDefinition   bool
	Span           SourceSpan
}

// NewIdentifier creates an unresolved identifier use
func NewIdentifier(name string, kind IdentifierKind) *Identifier {
	return &Identifier{UnresolvedName: name, Kind: kind}
}

// NewDefinition creates an unresolved identifier that defines its name
func NewDefinition(name string, kind IdentifierKind) *Identifier {
	return &Identifier{UnresolvedName: name, Kind: kind, IsDefinition: true}
}

// TypeRef creates a reference to the named type
func TypeRef(name string) *Identifier {
	return NewIdentifier(name, KindTypeName)
}

// Label creates a reference to the named block
func Label(name string) *Identifier {
	return NewIdentifier(name, KindBlockLabel)
}

// IsResolved reports whether name resolution has run for this identifier
func (id *Identifier) IsResolved() bool {
	return id.ResolvedName != ""
}

// Resolve records the resolved name. Resolving again to the same name is a
// no-op; resolving to a different name is rejected.
func (id *Identifier) Resolve(name string) error {
	if id.ResolvedName == name {
		return nil
	}
	if id.ResolvedName != "" {
		return errors.ResolvedTwice(id.UnresolvedName, id.ResolvedName, name, id.Span.Position())
	}
	id.ResolvedName = name
	return nil
}

// Key is the name analyses compare identifiers by
func (id *Identifier) Key() string {
	if id.ResolvedName != "" {
		return id.ResolvedName
	}
	return id.UnresolvedName
}

// TypeName returns the key of the identifier's type or "" when untyped
func (id *Identifier) TypeName() string {
	if id.Type == nil {
		return ""
	}
	return id.Type.Key()
}

// SetType annotates the identifier with a reference to the named type
func (id *Identifier) SetType(name string) {
	ref := TypeRef(name)
	ref.ResolvedName = name
	id.Type = ref
}

// Use returns a fresh non-defining identifier naming the same value
func (id *Identifier) Use() *Identifier {
	use := &Identifier{
		UnresolvedName: id.UnresolvedName,
		ResolvedName:   id.ResolvedName,
		Kind:           id.Kind,
	}
	if id.Type != nil {
		use.Type = id.Type.clone()
	}
	return use
}

// AsDefinition returns a fresh defining copy, used when a value is re-bound
// as a block parameter
func (id *Identifier) AsDefinition() *Identifier {
	def := id.Use()
	def.IsDefinition = true
	def.Span = id.Span
	return def
}

func (id *Identifier) clone() *Identifier {
	c := *id
	if id.Type != nil {
		c.Type = id.Type.clone()
	}
	return &c
}

func (id *Identifier) String() string {
	if id == nil {
		return "<nil>"
	}
	return id.Key()
}

// keys extracts the comparison keys of a list of identifiers
func keys(ids []*Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Key()
	}
	return out
}
