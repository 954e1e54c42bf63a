// Package digest provides the opaque digest interface referenced by spec
// §9: "the digest function is an interface {update, finalise -> 32 bytes};
// the specific algorithm (SHA-256) is a calibration of the test vectors in
// §8, not a design invariant of the protocol." SHA-256 is implemented with
// the standard library, since the algorithm itself is explicitly out of
// scope as a design concern (spec §1) — only the interface boundary below
// is part of the protocol's shape.
package digest

import (
	"crypto/sha256"
	"hash"
)

// Size is the digest width in bytes (256 bits, spec §3).
const Size = sha256.Size

// Digest computes a fixed-size fingerprint over one or more chunks of
// bytes. Implementations must be safe to reuse across iterations via New.
type Digest interface {
	// Update feeds bytes into the running digest.
	Update(p []byte)
	// Finalise returns the digest of everything fed so far.
	Finalise() [Size]byte
}

// sha256Digest is the default Digest backed by crypto/sha256.
type sha256Digest struct {
	h hash.Hash
}

// New returns a fresh SHA-256-backed Digest.
func New() Digest {
	return &sha256Digest{h: sha256.New()}
}

func (d *sha256Digest) Update(p []byte) {
	d.h.Write(p)
}

func (d *sha256Digest) Finalise() [Size]byte {
	var out [Size]byte
	copy(out[:], d.h.Sum(nil))
	return out
}

// Sum is a convenience one-shot digest over a single buffer, used by both
// the Writer (computing the expected digest before publishing) and the
// Reader (recomputing over its local copy during the verify phase).
func Sum(p []byte) [Size]byte {
	d := New()
	d.Update(p)
	return d.Finalise()
}
