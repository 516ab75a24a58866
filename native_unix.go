//go:build !windows
// +build !windows

package odbcarrow

import (
	"errors"

	"github.com/ebitengine/purego"
)

// Load a dynamic library on Unix systems using purego
func loadDynamicLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// Close the library
func closeLibrary(handle uintptr) {
	if handle != 0 {
		_ = purego.Dlclose(handle)
	}
}

// Get a symbol from the library
func getSymbol(handle uintptr, name string) (uintptr, error) {
	if handle == 0 {
		return 0, errors.New("invalid library handle")
	}
	return purego.Dlsym(handle, name)
}
