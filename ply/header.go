package ply

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Storage format of the element data.
type Format uint8

const (
	BinaryLittleEndian Format = iota
	BinaryBigEndian
	ASCII
)

var formatNames = map[Format]string{
	BinaryLittleEndian: "binary_little_endian",
	BinaryBigEndian:    "binary_big_endian",
	ASCII:              "ascii",
}

func (f Format) String() string {
	return formatNames[f]
}

// A property as declared in the header. List properties carry a count type.
type headerProperty struct {
	Property
	isList    bool
	countType ScalarType
}

type headerElement struct {
	name       string
	count      int
	properties []headerProperty
}

type header struct {
	format   Format
	elements []headerElement
}

// WriteHeader emits the PLY header describing t.
func WriteHeader(w io.Writer, t *Table, format Format) error {
	var sb strings.Builder
	sb.WriteString("ply\n")
	fmt.Fprintf(&sb, "format %s 1.0\n", format)
	fmt.Fprintf(&sb, "element vertex %d\n", t.Count)
	for _, p := range t.Properties {
		fmt.Fprintf(&sb, "property %s %s\n", p.Type, p.Name)
	}
	sb.WriteString("end_header\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func readHeader(r *bufio.Reader) (*header, error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return nil, ErrNotPly
	}

	h := &header{format: ASCII}
	seenFormat := false
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: unexpected end of header", ErrBadHeader)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: %q", ErrBadHeader, strings.TrimSpace(line))
			}
			switch fields[1] {
			case "ascii":
				h.format = ASCII
			case "binary_little_endian":
				h.format = BinaryLittleEndian
			case "binary_big_endian":
				h.format = BinaryBigEndian
			default:
				return nil, fmt.Errorf("%w: format %q", ErrUnsupported, fields[1])
			}
			seenFormat = true
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: %q", ErrBadHeader, strings.TrimSpace(line))
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: element count %q", ErrBadHeader, fields[2])
			}
			h.elements = append(h.elements, headerElement{name: fields[1], count: count})
		case "property":
			if len(h.elements) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrBadHeader)
			}
			prop, err := parseProperty(fields[1:])
			if err != nil {
				return nil, err
			}
			el := &h.elements[len(h.elements)-1]
			el.properties = append(el.properties, prop)
		case "end_header":
			if !seenFormat {
				return nil, fmt.Errorf("%w: missing format line", ErrBadHeader)
			}
			for _, el := range h.elements {
				if el.count > 0 && len(el.properties) == 0 {
					return nil, fmt.Errorf("%w: element %q has rows but no properties", ErrBadHeader, el.name)
				}
			}
			return h, nil
		default:
			return nil, fmt.Errorf("%w: unknown keyword %q", ErrBadHeader, fields[0])
		}
	}
}

func parseProperty(fields []string) (headerProperty, error) {
	if len(fields) == 4 && fields[0] == "list" {
		countType, ok1 := typeAliases[fields[1]]
		itemType, ok2 := typeAliases[fields[2]]
		if !ok1 || !ok2 {
			return headerProperty{}, fmt.Errorf("%w: list property types %q", ErrBadHeader, strings.Join(fields, " "))
		}
		return headerProperty{
			Property:  Property{Name: fields[3], Type: itemType},
			isList:    true,
			countType: countType,
		}, nil
	}
	if len(fields) != 2 {
		return headerProperty{}, fmt.Errorf("%w: property %q", ErrBadHeader, strings.Join(fields, " "))
	}
	typ, ok := typeAliases[fields[0]]
	if !ok {
		return headerProperty{}, fmt.Errorf("%w: property type %q", ErrBadHeader, fields[0])
	}
	return headerProperty{Property: Property{Name: fields[1], Type: typ}}, nil
}
