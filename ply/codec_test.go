package ply

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	tbl := NewTable(3)
	require.NoError(t, tbl.AddColumn("x", Float32, []float32{0.5, -1.25, 3}))
	require.NoError(t, tbl.AddColumn("y", Float32, []float32{1e-7, 2, -3.75}))
	require.NoError(t, tbl.AddColumn("red", Uint8, []float32{0, 128, 255}))
	require.NoError(t, tbl.AddColumn("type", Float32, []float32{0, 1, 1}))
	return tbl
}

func TestHeaderGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, sampleTable(t), BinaryLittleEndian))

	g := goldie.New(t)
	g.Assert(t, "header", buf.Bytes())
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{BinaryLittleEndian, BinaryBigEndian, ASCII} {
		t.Run(format.String(), func(t *testing.T) {
			src := sampleTable(t)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src, format))

			got, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, src.Count, got.Count)
			assert.Equal(t, src.Properties, got.Properties)
			for _, name := range src.Names() {
				exp, _ := src.Column(name)
				col, found := got.Column(name)
				require.True(t, found, name)
				assert.Equal(t, exp, col, name)
			}
		})
	}
}

func TestDecodeSkipsLeadingElements(t *testing.T) {
	input := strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"comment generated by hand",
		"element face 2",
		"property list uchar int vertex_indices",
		"element vertex 2",
		"property float x",
		"property double y",
		"end_header",
		"3 0 1 2",
		"4 0 1 2 3",
		"1.5 2.5",
		"-1 -2",
		"",
	}, "\n")

	tbl, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	x, _ := tbl.Column("x")
	y, _ := tbl.Column("y")
	assert.Equal(t, []float32{1.5, -1}, x)
	assert.Equal(t, []float32{2.5, -2}, y)
}

func TestDecodeErrors(t *testing.T) {
	specs := []struct {
		input  string
		expErr error
	}{
		{"obj\n", ErrNotPly},
		{"ply\nformat ascii 1.0\nelement vertex 1\nproperty half x\nend_header\n", ErrBadHeader},
		{"ply\nformat binary_middle_endian 1.0\nend_header\n", ErrUnsupported},
		{"ply\nformat ascii 1.0\nelement face 0\nproperty list uchar int idx\nend_header\n", ErrNoVertices},
		{"ply\nelement vertex 0\nend_header\n", ErrBadHeader},
	}

	for index, spec := range specs {
		_, err := Decode(strings.NewReader(spec.input))
		assert.ErrorIs(t, err, spec.expErr, "spec %d", index)
	}
}

func TestDecodeDoesNotTrustHeaderCount(t *testing.T) {
	specs := []string{
		"ply\nformat ascii 1.0\nelement vertex 9223372036854775807\nproperty float x\nend_header\n1\n",
		"ply\nformat binary_little_endian 1.0\nelement vertex 4000000000\nproperty float x\nproperty float y\nend_header\n\x00\x00\x80\x3f\x00\x00",
	}
	for index, input := range specs {
		_, err := Decode(strings.NewReader(input))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "spec %d", index)
	}

	_, err := Decode(strings.NewReader("ply\nformat ascii 1.0\nelement vertex 9223372036854775807\nend_header\n"))
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestDecodeTruncatedBinary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleTable(t), BinaryLittleEndian))

	data := buf.Bytes()
	_, err := Decode(bytes.NewReader(data[:len(data)-3]))
	assert.Error(t, err)
}

func TestAddColumnValidation(t *testing.T) {
	tbl := NewTable(2)
	assert.ErrorIs(t, tbl.AddColumn("x", Float32, []float32{1}), ErrColumnLength)
	require.NoError(t, tbl.AddColumn("x", Float32, []float32{1, 2}))
	assert.ErrorIs(t, tbl.AddColumn("x", Float32, []float32{1, 2}), ErrDuplicateColumn)

	_, err := tbl.MustColumn("y")
	assert.ErrorIs(t, err, ErrMissingColumn)
}
