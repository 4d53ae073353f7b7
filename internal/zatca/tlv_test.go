package zatca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tlv builds one encoded tag-length-value field for test payloads.
func tlv(tag byte, value string) []byte {
	out := []byte{tag, byte(len(value))}
	return append(out, value...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestReadFieldStates(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		offset int
		want   stepResult
	}{
		{
			name:   "complete field",
			data:   tlv(1, "abc"),
			offset: 0,
			want:   stepField,
		},
		{
			name:   "cursor at end of input",
			data:   tlv(1, "abc"),
			offset: 5,
			want:   stepEnd,
		},
		{
			name:   "empty input",
			data:   nil,
			offset: 0,
			want:   stepEnd,
		},
		{
			name:   "lone tag byte without length",
			data:   []byte{1},
			offset: 0,
			want:   stepTruncated,
		},
		{
			name:   "value shorter than declared length",
			data:   []byte{1, 5, 'a', 'b'},
			offset: 0,
			want:   stepTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, result := readField(tt.data, tt.offset)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestReadFieldZeroLength(t *testing.T) {
	field, next, result := readField([]byte{7, 0}, 0)

	require.Equal(t, stepField, result)
	assert.Equal(t, byte(7), field.Tag)
	assert.Empty(t, field.Value)
	assert.Equal(t, 2, next)
}

func TestScanCollectsAllFields(t *testing.T) {
	payload := concat(tlv(1, "Seller"), tlv(2, "12345"), tlv(99, "opaque"))

	fields := scanTLV(payload)

	require.Len(t, fields, 3)
	assert.Equal(t, byte(1), fields[0].Tag)
	assert.Equal(t, "Seller", string(fields[0].Value))
	assert.Equal(t, byte(2), fields[1].Tag)
	assert.Equal(t, "12345", string(fields[1].Value))
	assert.Equal(t, byte(99), fields[2].Tag)
	assert.Equal(t, "opaque", string(fields[2].Value))
}

func TestScanDiscardsTruncatedTrailingField(t *testing.T) {
	payload := concat(tlv(1, "Seller"), []byte{4, 10, '1', '0'})

	fields := scanTLV(payload)

	require.Len(t, fields, 1)
	assert.Equal(t, "Seller", string(fields[0].Value))
}

// Cutting the payload at every possible position must never panic and
// must yield only fields that were fully readable before the cut.
func TestScanTruncationSweep(t *testing.T) {
	payload := concat(tlv(1, "Acme"), tlv(2, "300012345600003"), tlv(4, "115.00"))

	full := scanTLV(payload)
	require.Len(t, full, 3)

	for cut := 0; cut <= len(payload); cut++ {
		var fields []tlvField
		require.NotPanics(t, func() {
			fields = scanTLV(payload[:cut])
		}, "cut at %d", cut)

		require.LessOrEqual(t, len(fields), len(full), "cut at %d", cut)
		for i, field := range fields {
			assert.Equal(t, full[i].Tag, field.Tag, "cut at %d", cut)
			assert.Equal(t, full[i].Value, field.Value, "cut at %d", cut)
		}
	}
}
