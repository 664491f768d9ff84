package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalMeter sums file sizes below baseDir/tenants/<tenant-id>.
type LocalMeter struct {
	baseDir string
}

// NewLocalMeter fails when baseDir exists but is not a directory. A missing
// baseDir is allowed: nothing has been uploaded yet.
func NewLocalMeter(baseDir string) (*LocalMeter, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: base directory is required", ErrInvalidConfig)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, errors.Join(ErrInvalidConfig, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidConfig, abs)
	}
	return &LocalMeter{baseDir: abs}, nil
}

func (m *LocalMeter) TenantBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if tenantID == uuid.Nil {
		return 0, ErrInvalidTenant
	}
	dir := filepath.Join(m.baseDir, filepath.FromSlash(TenantPrefix("", tenantID)))

	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	switch {
	case err == nil:
		return total, nil
	case errors.Is(err, fs.ErrNotExist):
		return 0, nil
	case errors.Is(err, context.Canceled):
		return 0, errors.Join(ErrOperationCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return 0, errors.Join(ErrOperationTimeout, err)
	default:
		return 0, errors.Join(ErrMeterFailed, err)
	}
}
