// Package secret provides scoped buffers for password material.
//
// Passwords unlock private-key material, so they live in mutable byte
// slices and are zero-wiped on every exit path: normal return, early
// return, or panic. Never copy a password into a string; strings are
// immutable and the material would outlive its scope.
package secret

// Buffer holds secret bytes that must be wiped after use.
type Buffer struct {
	data []byte
}

// New wraps the given bytes in a Buffer. The Buffer takes ownership:
// the caller must not retain its own reference to b.
func New(b []byte) *Buffer {
	return &Buffer{data: b}
}

// FromString copies a password string into a wipeable buffer.
// The copy is the only mutable representation; the source string cannot be
// wiped and should come straight from a flag or prompt, not be stored.
func FromString(s string) *Buffer {
	return &Buffer{data: []byte(s)}
}

// Bytes returns the underlying secret bytes. The slice is only valid until
// Wipe is called.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns the secret length, zero for a nil buffer.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Wipe overwrites the secret with zeros. Safe to call multiple times and
// on a nil buffer.
func (b *Buffer) Wipe() {
	if b == nil {
		return
	}
	for i := range b.data {
		b.data[i] = 0
	}
	b.data = b.data[:0]
}

// Use invokes fn with the secret bytes and wipes the buffer when fn
// returns, including when fn panics.
func (b *Buffer) Use(fn func(password []byte) error) error {
	defer b.Wipe()
	return fn(b.Bytes())
}
