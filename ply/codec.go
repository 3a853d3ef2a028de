package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Encode writes t as a PLY file with a single vertex element.
func Encode(w io.Writer, t *Table, format Format) error {
	bw := bufio.NewWriter(w)
	if err := WriteHeader(bw, t, format); err != nil {
		return err
	}

	columns := make([][]float32, len(t.Properties))
	for index, p := range t.Properties {
		columns[index] = t.columns[p.Name]
	}

	var err error
	switch format {
	case ASCII:
		err = encodeASCII(bw, t, columns)
	case BinaryLittleEndian:
		err = encodeBinary(bw, t, columns, binary.LittleEndian)
	case BinaryBigEndian:
		err = encodeBinary(bw, t, columns, binary.BigEndian)
	default:
		err = fmt.Errorf("%w: format %d", ErrUnsupported, format)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func encodeBinary(w io.Writer, t *Table, columns [][]float32, order binary.ByteOrder) error {
	rowSize := 0
	for _, p := range t.Properties {
		rowSize += p.Type.Size()
	}

	row := make([]byte, rowSize)
	for index := 0; index < t.Count; index++ {
		offset := 0
		for col, p := range t.Properties {
			putScalar(row[offset:], p.Type, order, columns[col][index])
			offset += p.Type.Size()
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func encodeASCII(w io.Writer, t *Table, columns [][]float32) error {
	fields := make([]string, len(columns))
	for index := 0; index < t.Count; index++ {
		for col, p := range t.Properties {
			v := columns[col][index]
			if p.Type == Float32 || p.Type == Float64 {
				fields[col] = strconv.FormatFloat(float64(v), 'g', -1, 32)
			} else {
				fields[col] = strconv.FormatInt(int64(math.Round(float64(v))), 10)
			}
		}
		if _, err := io.WriteString(w, strings.Join(fields, " ")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Rows preallocated per column before any vertex data has been read.
const maxPrealloc = 1 << 16

// Decode parses a PLY stream and returns its vertex element. Elements that
// precede the vertex element are skipped; anything after it is ignored.
func Decode(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	var src elementSource
	switch h.format {
	case ASCII:
		scanner := bufio.NewScanner(br)
		scanner.Split(bufio.ScanWords)
		src = &asciiSource{scanner: scanner}
	case BinaryLittleEndian:
		src = &binarySource{r: br, order: binary.LittleEndian}
	case BinaryBigEndian:
		src = &binarySource{r: br, order: binary.BigEndian}
	}

	for _, el := range h.elements {
		if el.name != "vertex" {
			if err := skipElement(src, el); err != nil {
				return nil, fmt.Errorf("ply: skipping element %q: %w", el.name, err)
			}
			continue
		}

		// The header count is untrusted; columns grow as rows are read.
		columns := make([][]float32, len(el.properties))
		for index, p := range el.properties {
			if p.isList {
				return nil, fmt.Errorf("%w: list property %q in vertex element", ErrUnsupported, p.Name)
			}
			columns[index] = make([]float32, 0, min(el.count, maxPrealloc))
		}

		for row := 0; row < el.count; row++ {
			for col, p := range el.properties {
				v, err := src.next(p.Type)
				if err != nil {
					return nil, fmt.Errorf("ply: reading vertex %d property %q: %w", row, p.Name, err)
				}
				columns[col] = append(columns[col], v)
			}
		}

		table := NewTable(el.count)
		for index, p := range el.properties {
			if err := table.AddColumn(p.Name, p.Type, columns[index]); err != nil {
				return nil, err
			}
		}
		return table, nil
	}

	return nil, ErrNoVertices
}

func skipElement(src elementSource, el headerElement) error {
	for row := 0; row < el.count; row++ {
		for _, p := range el.properties {
			if !p.isList {
				if err := src.skip(p.Type, 1); err != nil {
					return err
				}
				continue
			}
			count, err := src.next(p.countType)
			if err != nil {
				return err
			}
			if err := src.skip(p.Type, int(count)); err != nil {
				return err
			}
		}
	}
	return nil
}

type elementSource interface {
	next(typ ScalarType) (float32, error)
	skip(typ ScalarType, count int) error
}

type binarySource struct {
	r     *bufio.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (s *binarySource) next(typ ScalarType) (float32, error) {
	buf := s.buf[:typ.Size()]
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return 0, err
	}
	return getScalar(buf, typ, s.order), nil
}

func (s *binarySource) skip(typ ScalarType, count int) error {
	_, err := s.r.Discard(typ.Size() * count)
	return err
}

type asciiSource struct {
	scanner *bufio.Scanner
}

func (s *asciiSource) next(_ ScalarType) (float32, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	v, err := strconv.ParseFloat(s.scanner.Text(), 64)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func (s *asciiSource) skip(typ ScalarType, count int) error {
	for i := 0; i < count; i++ {
		if _, err := s.next(typ); err != nil {
			return err
		}
	}
	return nil
}

func getScalar(buf []byte, typ ScalarType, order binary.ByteOrder) float32 {
	switch typ {
	case Float64:
		return float32(math.Float64frombits(order.Uint64(buf)))
	case Int8:
		return float32(int8(buf[0]))
	case Uint8:
		return float32(buf[0])
	case Int16:
		return float32(int16(order.Uint16(buf)))
	case Uint16:
		return float32(order.Uint16(buf))
	case Int32:
		return float32(int32(order.Uint32(buf)))
	case Uint32:
		return float32(order.Uint32(buf))
	}
	return math.Float32frombits(order.Uint32(buf))
}

func putScalar(buf []byte, typ ScalarType, order binary.ByteOrder, v float32) {
	switch typ {
	case Float64:
		order.PutUint64(buf, math.Float64bits(float64(v)))
	case Int8:
		buf[0] = byte(int8(math.Round(float64(v))))
	case Uint8:
		buf[0] = uint8(math.Round(float64(v)))
	case Int16:
		order.PutUint16(buf, uint16(int16(math.Round(float64(v)))))
	case Uint16:
		order.PutUint16(buf, uint16(math.Round(float64(v))))
	case Int32:
		order.PutUint32(buf, uint32(int32(math.Round(float64(v)))))
	case Uint32:
		order.PutUint32(buf, uint32(math.Round(float64(v))))
	default:
		order.PutUint32(buf, math.Float32bits(v))
	}
}
