// Package perfsample provides the opaque hardware performance-counter
// sampler interface referenced by spec §9: "the optional perf sampler is an
// interface {start, stop -> bytes} whose output is copied into perf_sample
// opaquely; the core must build and operate without it." Acquisition of
// real hardware counters is out of scope (spec §1); only the interface
// boundary and a no-op default live here.
package perfsample

// Sampler brackets one measured phase and returns an opaque byte record no
// larger than the region's perf_sample window. The core never interprets
// the bytes.
type Sampler interface {
	Start()
	Stop() []byte
}

// Noop is the default Sampler used when no hardware counter backend is
// configured; it always returns an empty record.
type Noop struct{}

func (Noop) Start()       {}
func (Noop) Stop() []byte { return nil }

// Copy writes sample into the region's perf_sample window, truncating if
// the sampler returned more bytes than the window holds and zero-filling
// the remainder otherwise so stale bytes from a previous iteration never
// leak into a shorter sample.
func Copy(dst []byte, sample []byte) {
	n := copy(dst, sample)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
