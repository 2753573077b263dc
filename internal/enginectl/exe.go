package enginectl

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrBinaryNotFound is returned when the supervised server executable
// cannot be located anywhere. Fatal for that launch attempt, never retried.
var ErrBinaryNotFound = errors.New("inference server binary not found")

// binEnvVar overrides all other lookup locations when set.
const binEnvVar = "OLLAMACTL_SERVER_BIN"

// resolveBinary locates the server executable. Lookup order: environment
// override, explicitly configured path, bundled bin/ directory next to the
// running executable, then $PATH.
func resolveBinary(configured, name string) (string, error) {
	if p := os.Getenv(binEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
	}

	binaryName := name
	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}
	if self, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(self), "bin", binaryName)
		if _, err := os.Stat(bundled); err == nil {
			return bundled, nil
		}
	}
	if p, err := exec.LookPath(binaryName); err == nil {
		return p, nil
	}
	return "", ErrBinaryNotFound
}
