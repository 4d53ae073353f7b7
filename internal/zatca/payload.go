package zatca

import "encoding/base64"

// preparePayload turns the scanned text into the byte sequence the TLV
// walker consumes. QR readers normally hand us the base64 form printed on
// the invoice, but manual entry and some scanner apps deliver the decoded
// bytes directly, so a failed base64 decode is not an error: the raw
// string itself is taken as the payload.
func preparePayload(raw string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	return []byte(raw)
}
