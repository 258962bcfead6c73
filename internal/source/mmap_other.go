//go:build !unix

package source

// OpenMapped falls back to Open where mmap is unavailable.
func OpenMapped(path string) (Handle, error) {
	return Open(path)
}
