// Package backing opens and maps the byte-addressable backing object that
// holds the Frame Slot (spec §6): a host-visible file for the Writer, or a
// PCI BAR device resource node for the Reader — falling back to the same
// shared file when no device node is present, for host-side smoke testing.
//
// Grounded on the mmap'd-/dev/shm-file idiom (os.OpenFile + Truncate +
// syscall.Mmap/Munmap over a shared-memory file) and adapted to also cover
// opening an existing device node without truncating it.
package backing

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Object is a live mapping of the backing object. Both Writer and Reader
// wrap the same []byte in a region.Region.
type Object struct {
	file *os.File
	data []byte
}

// OpenWriter creates (or truncates) path to exactly size bytes and maps it
// read-write. This is the host side of spec §6: "a file on a shared-memory
// filesystem, opened and mapped."
func OpenWriter(path string, size int64) (*Object, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("backing: open %q: %w", path, err)
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("backing: truncate %q to %d bytes: %w", path, size, err)
	}

	return mapFile(f, size)
}

// OpenReader maps the first size bytes of an existing backing object
// without creating or truncating it; an object smaller than size is
// rejected. devicePath is tried first (the guest's PCI
// BAR resource node, spec §6); if it does not exist, fallbackPath (the
// same shared-memory file the Writer opened) is used instead, which is the
// "host-side smoke testing" fallback spec §6 describes.
func OpenReader(devicePath, fallbackPath string, size int64) (*Object, error) {
	path := devicePath
	if _, err := os.Stat(devicePath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("backing: stat %q: %w", devicePath, err)
		}
		path = fallbackPath
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("backing: open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("backing: stat opened %q: %w", path, err)
	}
	if info.Size() < size {
		f.Close()
		return nil, fmt.Errorf("backing: %q is %d bytes, want at least %d", path, info.Size(), size)
	}

	return mapFile(f, size)
}

func mapFile(f *os.File, size int64) (*Object, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("backing: mmap %q: %w", f.Name(), err)
	}

	return &Object{file: f, data: data}, nil
}

// Bytes returns the mapped region.
func (o *Object) Bytes() []byte {
	return o.data
}

// Close unmaps and closes the backing object, combining both errors rather
// than discarding the first (go.uber.org/multierr, already pulled in
// transitively by zap and promoted to direct use here).
func (o *Object) Close() error {
	var err error
	if o.data != nil {
		err = multierr.Append(err, unix.Munmap(o.data))
		o.data = nil
	}
	if o.file != nil {
		err = multierr.Append(err, o.file.Close())
		o.file = nil
	}
	return err
}
