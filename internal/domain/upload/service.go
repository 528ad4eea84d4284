package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50 MB
	PublicPrefix       = "/uploads"
)

// AllowedMimeTypes lists the document formats the library accepts, mapped to
// the extension stored on disk.
var AllowedMimeTypes = map[string]string{
	"application/pdf":      ".pdf",
	"application/epub+zip": ".epub",
}

// Service writes uploaded documents to local disk.
type Service struct {
	baseDir string
	maxSize int64
	log     *zap.Logger
}

func NewService(baseDir string, maxSize int64, log *zap.Logger) (*Service, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Service{baseDir: baseDir, maxSize: maxSize, log: log}, nil
}

func (s *Service) Dir() string    { return s.baseDir }
func (s *Service) MaxSize() int64 { return s.maxSize }

// Save sniffs the content type, rejects anything but PDF and EPUB, and
// writes the file under a generated name.
func (s *Service) Save(fileHeader *multipart.FileHeader) (*StoredFile, error) {
	if fileHeader.Size == 0 {
		return nil, ErrEmptyFile
	}
	if fileHeader.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	mime, err := mimetype.DetectReader(file)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	ext, ok := allowedExtension(mime)
	if !ok {
		s.log.Info("upload rejected", zap.String("file", fileHeader.Filename), zap.String("mime", mime.String()))
		return nil, ErrInvalidMimeType
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	name := fmt.Sprintf("%s_%s%s", uuid.NewString(), sanitizeName(fileHeader.Filename), ext)
	absPath := filepath.Join(s.baseDir, name)
	dst, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(file, s.maxSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(absPath)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if written > s.maxSize {
		_ = os.Remove(absPath)
		return nil, ErrFileTooLarge
	}

	return &StoredFile{
		Name:         name,
		OriginalName: fileHeader.Filename,
		MimeType:     mime.String(),
		Size:         written,
	}, nil
}

// Remove deletes a stored file; a file that is already gone is not an error.
func (s *Service) Remove(name string) error {
	err := os.Remove(filepath.Join(s.baseDir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PublicURL builds the absolute URL a stored file is served from.
func PublicURL(scheme, host, name string) string {
	return fmt.Sprintf("%s://%s%s/%s", scheme, host, PublicPrefix, name)
}

func allowedExtension(mime *mimetype.MIME) (string, bool) {
	for m := mime; m != nil; m = m.Parent() {
		if ext, ok := AllowedMimeTypes[m.String()]; ok {
			return ext, true
		}
	}
	return "", false
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" {
		return "file"
	}
	return name
}
