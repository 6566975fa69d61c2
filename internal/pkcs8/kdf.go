package pkcs8

import (
	"crypto/sha1"
	"math/big"
	"unicode/utf16"
)

// pkcs12KDF derives key material per RFC 7292 appendix B using SHA-1.
// id is the diversifier: 1 for encryption keys, 2 for IVs. The password
// is converted to the BMPString form the KDF requires (UTF-16BE with a
// trailing zero terminator).
func pkcs12KDF(password, salt []byte, iterations, id, size int) []byte {
	const u = sha1.Size // hash output
	const v = 64        // hash block

	bmp := bmpString(password)
	defer wipe(bmp)

	// D: v copies of the diversifier.
	var d [v]byte
	for i := range d {
		d[i] = byte(id)
	}

	// I = S || P, each the source repeated to a multiple of v.
	i := append(repeatToMultiple(salt, v), repeatToMultiple(bmp, v)...)

	one := big.NewInt(1)
	out := make([]byte, 0, size)
	for len(out) < size {
		digest := sha1.Sum(append(d[:], i...))
		for n := 1; n < iterations; n++ {
			digest = sha1.Sum(digest[:])
		}
		out = append(out, digest[:]...)

		// B: digest repeated to v bytes, then I_j = (I_j + B + 1) mod 2^(v*8).
		b := repeatToMultiple(digest[:], v)
		bInt := new(big.Int).SetBytes(b)
		bInt.Add(bInt, one)
		for j := 0; j < len(i); j += v {
			chunk := new(big.Int).SetBytes(i[j : j+v])
			chunk.Add(chunk, bInt)
			raw := chunk.Bytes()
			// keep the low v bytes, left-padded
			for k := 0; k < v; k++ {
				i[j+k] = 0
			}
			if len(raw) > v {
				raw = raw[len(raw)-v:]
			}
			copy(i[j+v-len(raw):j+v], raw)
		}
	}
	return out[:size]
}

// bmpString encodes the password as a big-endian UTF-16 string with a
// two-byte zero terminator, matching the PKCS#12 password convention.
func bmpString(password []byte) []byte {
	codes := utf16.Encode([]rune(string(password)))
	out := make([]byte, 0, 2*len(codes)+2)
	for _, c := range codes {
		out = append(out, byte(c>>8), byte(c))
	}
	return append(out, 0, 0)
}

// repeatToMultiple repeats src until the length is the next multiple of n.
// An empty source yields an empty slice.
func repeatToMultiple(src []byte, n int) []byte {
	if len(src) == 0 {
		return nil
	}
	total := ((len(src) + n - 1) / n) * n
	out := make([]byte, total)
	for i := 0; i < total; i += len(src) {
		copy(out[i:], src)
	}
	return out
}
