package environment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/envctl/internal/model"
)

// ErrTransferNotSupported is returned when a backend can't copy files natively.
var ErrTransferNotSupported = errors.New("native file transfer not supported")

// Transferer is implemented by backends that can copy files and directories
// between the host and the environment natively (e.g sftp).
type Transferer interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
}

// Upload copies a host path into the environment if the backend supports native transfers.
func Upload(ctx context.Context, b Backend, localPath, remotePath string) error {
	t, ok := b.(Transferer)
	if !ok {
		return ErrTransferNotSupported
	}
	return t.Upload(ctx, localPath, remotePath)
}

// Download copies an environment path to the host if the backend supports native transfers.
func Download(ctx context.Context, b Backend, remotePath, localPath string) error {
	t, ok := b.(Transferer)
	if !ok {
		return ErrTransferNotSupported
	}
	return t.Download(ctx, remotePath, localPath)
}

// CopyIn copies a host path into the environment. Backends without native
// transfers fall back to reading the local file and writing it with
// WriteFile, only regular files can be copied that way.
func CopyIn(ctx context.Context, b Backend, localPath, remotePath string) error {
	err := Upload(ctx, b, localPath, remotePath)
	if !errors.Is(err, ErrTransferNotSupported) {
		return err
	}

	st, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("could not stat %s: %w", localPath, err)
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file and %s can't transfer directories: %w", localPath, b.Type(), model.ErrNotValid)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", localPath, err)
	}

	return b.WriteFile(ctx, remotePath, string(data))
}

// CopyOut copies an environment file to the host. Backends without native
// transfers fall back to ReadFile.
func CopyOut(ctx context.Context, b Backend, remotePath, localPath string) error {
	err := Download(ctx, b, remotePath, localPath)
	if !errors.Is(err, ErrTransferNotSupported) {
		return err
	}

	content, err := b.ReadFile(ctx, remotePath, model.ReadOpts{})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("could not create directory for %s: %w", localPath, err)
	}
	if err := os.WriteFile(localPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", localPath, err)
	}

	return nil
}
