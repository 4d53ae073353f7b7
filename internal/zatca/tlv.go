package zatca

// tlvField is a single tag-length-value triple lifted from the QR payload.
// The ZATCA phase-1 format uses a one-byte tag and a one-byte length, so a
// field can never carry more than 255 bytes of value.
type tlvField struct {
	Tag   byte
	Value []byte
}

// stepResult reports the outcome of reading one field at the cursor.
type stepResult int

const (
	// stepField means a complete field was read and the cursor advanced.
	stepField stepResult = iota
	// stepEnd means the cursor sits exactly at the end of the input.
	stepEnd
	// stepTruncated means the remaining bytes cannot hold a complete
	// field (header or value runs past the end of the buffer).
	stepTruncated
)

// readField reads the field starting at offset. It returns the field, the
// offset of the next field, and the step outcome. The field is only
// meaningful when the result is stepField. readField never reads past the
// end of data.
func readField(data []byte, offset int) (tlvField, int, stepResult) {
	if offset >= len(data) {
		return tlvField{}, offset, stepEnd
	}
	if offset+2 > len(data) {
		return tlvField{}, offset, stepTruncated
	}

	tag := data[offset]
	length := int(data[offset+1])
	next := offset + 2 + length
	if next > len(data) {
		return tlvField{}, offset, stepTruncated
	}

	return tlvField{
		Tag:   tag,
		Value: data[offset+2 : next],
	}, next, stepField
}

// scanTLV walks the payload and collects every well-formed field,
// unrecognized tags included. A truncated trailing field is discarded and
// the fields read before it are returned; truncation is an end condition
// here, not an error.
func scanTLV(data []byte) []tlvField {
	fields := make([]tlvField, 0, 8)

	offset := 0
	for {
		field, next, result := readField(data, offset)
		if result != stepField {
			return fields
		}
		fields = append(fields, field)
		offset = next
	}
}
