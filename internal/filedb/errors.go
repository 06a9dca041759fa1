package filedb

import (
	"fmt"

	"DecorStore/internal/apperr"
)

var (
	ErrNotFound = fmt.Errorf("filedb: %w", apperr.ErrNotFound)
	ErrConflict = fmt.Errorf("filedb: %w", apperr.ErrConflict)
	ErrBusy     = fmt.Errorf("filedb: %w", apperr.ErrBusy)
	ErrCorrupt  = fmt.Errorf("filedb: %w", apperr.ErrCorrupt)
)
