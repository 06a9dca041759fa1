package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
)

const sniffLen = 512

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageStore writes uploads to <Dir>/products/<product id>/ and serves
// them under URLPrefix.
type ImageStore struct {
	Dir       string
	URLPrefix string
	MaxBytes  int64
}

type Image struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func (s *ImageStore) productDir(productID string) string {
	return filepath.Join(s.Dir, "products", productID)
}

func (s *ImageStore) URL(productID, name string) string {
	return path.Join(s.URLPrefix, "products", productID, name)
}

// Save sniffs the content type from the first bytes of r, picks a free
// sanitized file name and writes the upload. It returns the stored name.
func (s *ImageStore) Save(productID, filename string, r io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]
	if n == 0 {
		return "", fmt.Errorf("%w: empty upload", apperr.ErrValidation)
	}

	ctype := http.DetectContentType(head)
	ext, ok := imageExt[ctype]
	if !ok {
		return "", fmt.Errorf("%w: %s is not an accepted image type", apperr.ErrUnsupportedMedia, ctype)
	}

	dir := s.productDir(productID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := sanitizeName(filename, ext)
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		name = uuid.NewString()[:8] + "_" + name
		f, err = os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", err
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	if s.MaxBytes > 0 {
		body = io.LimitReader(body, s.MaxBytes+1)
	}
	written, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && written > s.MaxBytes {
		err = fmt.Errorf("%w: image larger than %d bytes", apperr.ErrValidation, s.MaxBytes)
	}
	if err != nil {
		_ = os.Remove(filepath.Join(dir, name))
		return "", err
	}
	return name, nil
}

func (s *ImageStore) Remove(productID, name string) error {
	err := os.Remove(filepath.Join(s.productDir(productID), name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *ImageStore) RemoveAll(productID string) error {
	return os.RemoveAll(s.productDir(productID))
}

// sanitizeName keeps the base name, replaces anything outside
// [A-Za-z0-9._-] and forces the extension to match the sniffed type.
func sanitizeName(filename, ext string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	stem := strings.Trim(b.String(), "._")
	if stem == "" {
		stem = "image"
	}
	if len(stem) > 64 {
		stem = stem[:64]
	}
	return stem + ext
}

func validImageName(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, `/\`)
}

// SaveImage stores an upload for an existing product and appends it to
// the product's image list.
func (s *Service) SaveImage(ctx context.Context, actor auth.Identity, productID, filename string, r io.Reader) (Image, error) {
	if !actor.IsAdmin() {
		return Image{}, errAdminOnly
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return Image{}, err
	}

	name, err := s.images.Save(productID, filename, r)
	if err != nil {
		return Image{}, err
	}

	_, err = s.products.Update(ctx, productID, func(p *Product) error {
		p.Images = append(p.Images, name)
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if rerr := s.images.Remove(productID, name); rerr != nil {
			s.log.Warn("remove orphan image", zap.String("file", name), zap.Error(rerr))
		}
		return Image{}, err
	}

	return Image{Filename: name, URL: s.images.URL(productID, name)}, nil
}

func (s *Service) ListImages(ctx context.Context, productID string) ([]Image, error) {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]Image, 0, len(p.Images))
	for _, name := range p.Images {
		out = append(out, Image{Filename: name, URL: s.images.URL(productID, name)})
	}
	return out, nil
}

func (s *Service) DeleteImage(ctx context.Context, actor auth.Identity, productID, filename string) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	if !validImageName(filename) {
		return fmt.Errorf("%w: bad image name", apperr.ErrValidation)
	}

	_, err := s.products.Update(ctx, productID, func(p *Product) error {
		i := slices.Index(p.Images, filename)
		if i < 0 {
			return fmt.Errorf("%w: image %q", apperr.ErrNotFound, filename)
		}
		p.Images = slices.Delete(p.Images, i, i+1)
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return err
	}
	return s.images.Remove(productID, filename)
}
