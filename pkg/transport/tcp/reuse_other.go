//go:build !unix

package tcp

// SO_REUSEADDR on Windows allows stealing a bound port, so it is left unset.
func setReuseAddr(uintptr) error {
	return nil
}
