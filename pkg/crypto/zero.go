package crypto

// Zeroize overwrites a byte slice with zeros. Derived secrets are
// zeroized when the owning session tears down.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// XOR returns the byte-wise XOR of two equal-length slices.
// The handshake signs static-shared-secret XOR nonce, and the frame
// secrets seed their MAC states with mac-secret XOR nonce.
func XOR(a, b []byte) []byte {
	if len(a) != len(b) {
		panic("crypto: XOR of slices with different lengths")
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
