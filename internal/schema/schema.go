// Package schema carries the narrow slice of array-schema information that
// FragmentMetadata needs to consult: attribute descriptors, the dimension
// tuple, and the write-format version a fragment was created with. The full
// schema object (query layout, C API surface) is out of scope per spec.md
// §1; this package exists only because FragmentMetadata cannot build its
// idx_map or size its per-column vectors without it.
package schema

import (
	"soltix.dev/fragstore/internal/dimension"
	"soltix.dev/fragstore/internal/domain"
)

// Attribute describes one fixed- or variable-length column.
type Attribute struct {
	name       string
	datatype   dimension.Datatype
	cellValNum uint32 // 0 means variable-length
	nullable   bool
	fillValue  []byte
}

// NewAttribute builds an Attribute. cellValNum of 0 marks a variable-length
// column.
func NewAttribute(name string, dt dimension.Datatype, cellValNum uint32, nullable bool) Attribute {
	return Attribute{name: name, datatype: dt, cellValNum: cellValNum, nullable: nullable}
}

func (a Attribute) Name() string               { return a.name }
func (a Attribute) Datatype() dimension.Datatype { return a.datatype }
func (a Attribute) CellValNum() uint32          { return a.cellValNum }
func (a Attribute) IsVarLength() bool           { return a.cellValNum == 0 }
func (a Attribute) Nullable() bool              { return a.nullable }
func (a Attribute) CellSize() int {
	if a.IsVarLength() {
		return 0
	}
	return a.datatype.ByteWidth() * int(a.cellValNum)
}

// Schema is the contract FragmentMetadata depends on: the attribute list,
// the dimension tuple (via Domain), and the format version new fragments
// should be written at.
type Schema interface {
	Name() string
	Attributes() []Attribute
	Attribute(name string) (Attribute, bool)
	Dimensions() []*dimension.Dimension
	Domain() *domain.Domain
	WriteVersion() uint32
	Dense() bool
}

// memSchema is the minimal in-memory Schema implementation used throughout
// this module; there is no on-disk schema format in scope.
type memSchema struct {
	name         string
	attrs        []Attribute
	byName       map[string]int
	dom          *domain.Domain
	writeVersion uint32
	dense        bool
}

// New builds an in-memory Schema.
func New(name string, dom *domain.Domain, attrs []Attribute, writeVersion uint32, dense bool) Schema {
	byName := make(map[string]int, len(attrs))
	for i, a := range attrs {
		byName[a.Name()] = i
	}
	return &memSchema{name: name, attrs: attrs, byName: byName, dom: dom, writeVersion: writeVersion, dense: dense}
}

func (s *memSchema) Name() string            { return s.name }
func (s *memSchema) Attributes() []Attribute { return s.attrs }
func (s *memSchema) Attribute(name string) (Attribute, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}
func (s *memSchema) Dimensions() []*dimension.Dimension { return s.dom.Dimensions() }
func (s *memSchema) Domain() *domain.Domain              { return s.dom }
func (s *memSchema) WriteVersion() uint32                { return s.writeVersion }
func (s *memSchema) Dense() bool                         { return s.dense }
