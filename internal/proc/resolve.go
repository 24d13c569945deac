package proc

import (
	"path/filepath"

	"llamadeskd/internal/common/fsutil"
)

// serverBinary is the llama.cpp server executable name.
const serverBinary = "llama-server"

// ResolveServerBin locates the llama-server executable under the configured
// executable folder, checking the common llama.cpp build layouts before
// falling back to PATH lookup.
func ResolveServerBin(folder string) string {
	base, err := fsutil.ExpandHome(folder)
	if err != nil || base == "" {
		return serverBinary
	}
	candidates := []string{
		filepath.Join(base, serverBinary),
		filepath.Join(base, "build", "bin", serverBinary),
		filepath.Join(base, "bin", serverBinary),
	}
	for _, c := range candidates {
		if fsutil.PathExists(c) {
			return c
		}
	}
	return serverBinary
}
