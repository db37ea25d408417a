package decrypt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// DefaultName is the logical name of the decryption helper.
const DefaultName = "decrypt-engine"

// ErrNotFound is returned by Locate when no helper executable exists.
var ErrNotFound = errors.New("decryptor not found")

// Launcher abstracts spawning the helper process so tests can substitute a
// mock implementation.
type Launcher interface {
	Start(ctx context.Context) (stdout, stderr io.ReadCloser, wait func() error, err error)
}

// ExecLauncher implements Launcher with os/exec. Args is empty for the
// standard helper.
type ExecLauncher struct {
	Path string
	Args []string
	Env  []string // appended to the parent environment
}

// Start starts the helper and returns its output pipes and a wait function.
// Both pipes must be read to EOF before wait is called.
func (l *ExecLauncher) Start(ctx context.Context) (io.ReadCloser, io.ReadCloser, func() error, error) {
	cmd := exec.Command(l.Path, l.Args...)
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return stdout, stderr, cmd.Wait, nil
}

// Locate finds the helper executable. An explicit path wins; otherwise name
// is looked up next to the running binary and then on $PATH.
func Locate(name, explicit string) (string, error) {
	if explicit != "" {
		fi, err := os.Stat(explicit)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		if fi.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, explicit)
		}
		return explicit, nil
	}
	if name == "" {
		name = DefaultName
	}

	file := name
	if runtime.GOOS == "windows" && filepath.Ext(file) == "" {
		file += ".exe"
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), file)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}
