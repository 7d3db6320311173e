// Package upload validates and stores user files under the upload root.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"calnotify/internal/domain"
	"calnotify/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// Source is one incoming file.
type Source struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromFileHeader adapts a parsed multipart file.
func FromFileHeader(fh *multipart.FileHeader) Source {
	return Source{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// StoredFile describes a file written to the upload root.
type StoredFile struct {
	Filename         string `json:"filename"`
	OriginalFilename string `json:"originalName"`
	ContentType      string `json:"mimeType"`
	Size             int64  `json:"size"`
	Dir              string `json:"-"`
	URL              string `json:"url"`
}

type Gateway struct {
	root         string
	publicPrefix string
	logger       zerolog.Logger
}

// NewGateway prepares the upload root and its category subdirectories.
func NewGateway(root, publicPrefix string, logger *zerolog.Logger) (*Gateway, error) {
	for _, dir := range []string{DirImages, DirPDFs, DirSounds, DirOther} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
	}
	return &Gateway{
		root:         root,
		publicPrefix: strings.TrimRight(publicPrefix, "/"),
		logger:       logger.With().Str("component", "upload").Logger(),
	}, nil
}

func (g *Gateway) Root() string {
	return g.root
}

// URL returns the public path of a stored file.
func (g *Gateway) URL(dir, filename string) string {
	return path.Join(g.publicPrefix, dir, filename)
}

// Validate checks a file against rules without touching storage.
func Validate(rules Rules, src Source) error {
	contentType := normalizeType(src.ContentType)
	if !rules.allows(contentType) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidFileType, contentType)
	}
	if src.Size > rules.MaxSize {
		return fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, rules.MaxSize)
	}
	return nil
}

// Store validates and writes one file. Nothing is written when validation fails.
func (g *Gateway) Store(ctx context.Context, rules Rules, src Source) (*StoredFile, error) {
	if err := Validate(rules, src); err != nil {
		metrics.IncUpload(rules.Name, "rejected")
		return nil, err
	}
	f, err := g.write(ctx, rules, src)
	if err != nil {
		metrics.IncUpload(rules.Name, "failed")
		return nil, err
	}
	metrics.IncUpload(rules.Name, "stored")
	return f, nil
}

// StoreMany validates every file first and then writes them. If any write
// fails the files already written are removed, so the batch is all or nothing.
func (g *Gateway) StoreMany(ctx context.Context, rules Rules, srcs []Source) ([]*StoredFile, error) {
	if len(srcs) == 0 {
		return nil, domain.ErrNoFile
	}
	if len(srcs) > rules.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d", domain.ErrTooManyFiles, rules.MaxFiles)
	}
	for _, src := range srcs {
		if err := Validate(rules, src); err != nil {
			metrics.IncUpload(rules.Name, "rejected")
			return nil, err
		}
	}

	stored := make([]*StoredFile, 0, len(srcs))
	for _, src := range srcs {
		f, err := g.write(ctx, rules, src)
		if err != nil {
			metrics.IncUpload(rules.Name, "failed")
			g.Discard(stored...)
			return nil, err
		}
		stored = append(stored, f)
	}
	for range stored {
		metrics.IncUpload(rules.Name, "stored")
	}
	return stored, nil
}

func (g *Gateway) write(ctx context.Context, rules Rules, src Source) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contentType := normalizeType(src.ContentType)
	dir := categoryDir(contentType)
	name := uuid.NewString() + extension(src.Filename, contentType)
	dst := filepath.Join(g.root, dir, name)

	in, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	// Declared sizes can lie; cap what is actually copied.
	written, copyErr := io.Copy(out, io.LimitReader(in, rules.MaxSize+1))
	closeErr := out.Close()
	switch {
	case copyErr != nil:
		g.removeFile(dst)
		return nil, fmt.Errorf("write upload file: %w", copyErr)
	case closeErr != nil:
		g.removeFile(dst)
		return nil, fmt.Errorf("close upload file: %w", closeErr)
	case written > rules.MaxSize:
		g.removeFile(dst)
		return nil, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, rules.MaxSize)
	}

	g.logger.Debug().Str("file", name).Str("dir", dir).Int64("size", written).Msg("Upload stored")

	return &StoredFile{
		Filename:         name,
		OriginalFilename: src.Filename,
		ContentType:      contentType,
		Size:             written,
		Dir:              dir,
		URL:              g.URL(dir, name),
	}, nil
}

// Discard removes provisionally stored files. Failures are logged, never returned.
func (g *Gateway) Discard(files ...*StoredFile) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := g.Remove(f.Dir, f.Filename); err != nil {
			g.logger.Error().Err(err).Str("file", f.Filename).Msg("Failed to discard upload")
		}
	}
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (g *Gateway) Remove(dir, filename string) error {
	if filename == "" || filepath.Base(filename) != filename || filename == "." || filename == ".." {
		return fmt.Errorf("invalid stored filename %q", filename)
	}
	err := os.Remove(filepath.Join(g.root, dir, filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (g *Gateway) removeFile(p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		g.logger.Error().Err(err).Str("path", p).Msg("Failed to remove partial upload")
	}
}

// extension keeps the client's extension when it is well formed and falls
// back to one registered for the media type.
func extension(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if extPattern.MatchString(ext) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
