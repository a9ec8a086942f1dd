package cerr

import (
	"errors"
	"fmt"

	"github.com/kazz187/delegate/pkg/storage"
)

// storageError classifies a storage failure for target. Missing files are
// NotFound and ids that would escape the storage root are InvalidArgument;
// anything else is an Internal error with the cause kept for the log.
func storageError(op, target string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	case errors.Is(err, storage.ErrInvalidPath):
		return NewError(InvalidArgument, fmt.Sprintf("invalid %s id", target), err)
	default:
		return NewError(Internal, "server error", fmt.Errorf("failed to %s %s: %w", op, target, err))
	}
}

func WrapStorageReadError(target string, err error) error {
	return storageError("read", target, err)
}

// WrapStorageWriteError never reports NotFound: a write creates the file.
func WrapStorageWriteError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(Internal, "server error", fmt.Errorf("failed to write %s: %w", target, err))
	}
	return storageError("write", target, err)
}

func WrapStorageDeleteError(target string, err error) error {
	return storageError("delete", target, err)
}
