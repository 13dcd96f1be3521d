package target

import "encoding/base64"

// hexDigit reports whether b is a valid percent-encoding hex digit, and
// its value. Matches the HEXDIGS set the original normalizer scans for.
func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	default:
		return 0, false
	}
}

// PercentDecode replaces %HH triples (H a hex digit) with the byte 0xHH;
// any other byte, including a malformed or truncated %-sequence, passes
// through unchanged. This mirrors the original's percent_decode sliding
// window over the input bytes.
func PercentDecode(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		if b[i] == '%' && i+2 < len(b) {
			hi, okHi := hexDigit(b[i+1])
			lo, okLo := hexDigit(b[i+2])
			if okHi && okLo {
				out = append(out, byte(hi*16+lo))
				i += 3
				continue
			}
		}
		out = append(out, b[i])
		i++
	}
	return out
}

// Normalize implements spec §6's output normalization: each field is
// base64-decoded, then percent-decoded. Invalid base64 is returned as an
// empty field rather than propagating a decode error, since a target
// emitting garbage on stdout is not itself a fatal condition (§7).
func Normalize(fieldB64 []byte) []byte {
	raw, err := base64.StdEncoding.DecodeString(string(fieldB64))
	if err != nil {
		return nil
	}
	return PercentDecode(raw)
}

// DecodeAndNormalize un-base64s the wire value (always plain ASCII on
// the wire, regardless of the target's output_encoding), decodes the
// resulting bytes from that encoding, and percent-decodes the result.
// This is the order spec §6 requires: base64 is a transport concern,
// output_encoding describes the bytes it carries.
func DecodeAndNormalize(fieldB64 []byte, outputEncoding string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(string(fieldB64))
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeField(outputEncoding, raw)
	if err != nil {
		return nil, err
	}
	return PercentDecode(decoded), nil
}
