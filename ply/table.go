package ply

import "fmt"

// Scalar property types.
type ScalarType uint8

const (
	Float32 ScalarType = iota
	Float64
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
)

var typeNames = map[ScalarType]string{
	Float32: "float",
	Float64: "double",
	Int8:    "char",
	Uint8:   "uchar",
	Int16:   "short",
	Uint16:  "ushort",
	Int32:   "int",
	Uint32:  "uint",
}

// Alternative names accepted when parsing headers.
var typeAliases = map[string]ScalarType{
	"float":   Float32,
	"float32": Float32,
	"double":  Float64,
	"float64": Float64,
	"char":    Int8,
	"int8":    Int8,
	"uchar":   Uint8,
	"uint8":   Uint8,
	"short":   Int16,
	"int16":   Int16,
	"ushort":  Uint16,
	"uint16":  Uint16,
	"int":     Int32,
	"int32":   Int32,
	"uint":    Uint32,
	"uint32":  Uint32,
}

// Size of the scalar type in bytes.
func (t ScalarType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Float64:
		return 8
	}
	return 4
}

func (t ScalarType) String() string {
	return typeNames[t]
}

// A scalar vertex property.
type Property struct {
	Name string
	Type ScalarType
}

// Table is a columnar view of the vertex element of a PLY file. All values
// are held as float32 regardless of their stored type.
type Table struct {
	Count      int
	Properties []Property

	columns map[string][]float32
}

// Create an empty table for count vertices.
func NewTable(count int) *Table {
	return &Table{
		Count:   count,
		columns: make(map[string][]float32),
	}
}

// Append a column. The column must hold exactly Count values and its name
// must be unique.
func (t *Table) AddColumn(name string, typ ScalarType, data []float32) error {
	if len(data) != t.Count {
		return fmt.Errorf("%w: column %q has %d values; expected %d", ErrColumnLength, name, len(data), t.Count)
	}
	if _, exists := t.columns[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	t.Properties = append(t.Properties, Property{Name: name, Type: typ})
	t.columns[name] = data
	return nil
}

// Get a column by name.
func (t *Table) Column(name string) ([]float32, bool) {
	data, found := t.columns[name]
	return data, found
}

// Get a column by name or return ErrMissingColumn.
func (t *Table) MustColumn(name string) ([]float32, error) {
	data, found := t.columns[name]
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return data, nil
}

// Returns the property names in declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Properties))
	for index, p := range t.Properties {
		out[index] = p.Name
	}
	return out
}
