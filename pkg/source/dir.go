// Package source enumerates WebAssembly modules on disk for batch runs.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/wasmprov/pkg/batch"
	"github.com/Sumatoshi-tech/wasmprov/pkg/safeconv"
)

// Lz4Ext is the suffix of frame-compressed modules, decompressed on read.
const Lz4Ext = ".lz4"

// ErrInvalidPattern is returned by Validate for malformed globs.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// DefaultInclude matches raw and lz4-compressed modules at any depth.
func DefaultInclude() []string {
	return []string{"**/*.wasm", "**/*.wasm" + Lz4Ext}
}

// Dir is a [batch.Source] over the files under Root. Files are visited in
// lexical order. Per-file problems of matching files (unreadable, too large,
// bad compression) become inputs with Err set, so they show up as failures
// instead of aborting the walk. Files the patterns do not select are never
// reported. Unreadable subdirectories are logged and skipped.
type Dir struct {
	Logger *slog.Logger

	Root string

	// Include and Exclude are doublestar patterns matched against the
	// slash-separated path relative to Root. Empty Include means DefaultInclude.
	Include []string
	Exclude []string

	// MaxSize bounds the (decompressed) size of a module. Zero means no limit.
	MaxSize int64
}

// Validate checks every pattern.
func (d *Dir) Validate() error {
	for _, pat := range slices.Concat(d.Include, d.Exclude) {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, pat)
		}
	}

	return nil
}

// Each walks Root and yields one input per matching file.
func (d *Dir) Each(ctx context.Context, yield func(batch.Input) error) error {
	if err := d.Validate(); err != nil {
		return err
	}

	include := d.Include
	if len(include) == 0 {
		include = DefaultInclude()
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	err := filepath.WalkDir(d.Root, func(path string, entry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil && path == d.Root {
			return walkErr
		}

		if entry != nil && entry.IsDir() {
			if walkErr != nil {
				logger.WarnContext(ctx, "directory unreadable", slog.String("path", path), slog.Any("error", walkErr))
			}

			return nil
		}

		rel, err := filepath.Rel(d.Root, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}

		rel = filepath.ToSlash(rel)

		if !matchAny(include, rel) || matchAny(d.Exclude, rel) {
			logger.DebugContext(ctx, "file ignored", slog.String("path", rel))

			return nil
		}

		if walkErr != nil {
			return yield(batch.Input{ID: path, Err: walkErr})
		}

		data, err := d.read(path, entry)

		return yield(batch.Input{ID: path, Data: data, Err: err})
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", d.Root, err)
	}

	return nil
}

func (d *Dir) read(path string, entry fs.DirEntry) ([]byte, error) {
	info, err := entry.Info()
	if err != nil {
		return nil, err
	}

	compressed := strings.HasSuffix(path, Lz4Ext)

	if !compressed && d.MaxSize > 0 && info.Size() > d.MaxSize {
		return nil, fmt.Errorf("%w: %s > %s", batch.ErrTooLarge,
			humanize.IBytes(safeconv.MustInt64ToUint64(info.Size())), humanize.IBytes(safeconv.MustInt64ToUint64(d.MaxSize)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !compressed {
		return data, nil
	}

	return Decompress(data, d.MaxSize)
}

// Decompress inflates an lz4 frame. A positive limit caps the output size.
func Decompress(data []byte, limit int64) ([]byte, error) {
	var src io.Reader = lz4.NewReader(bytes.NewReader(data))

	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}

	out, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}

	if limit > 0 && int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: decompressed size exceeds %s", batch.ErrTooLarge, humanize.IBytes(safeconv.MustInt64ToUint64(limit)))
	}

	return out, nil
}

func matchAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, path); err == nil && ok {
			return true
		}
	}

	return false
}
