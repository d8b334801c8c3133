package storage

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bayanihan-data/povassess/config"
)

// Object metadata keys. Backends store them as user metadata next to the
// archived bytes.
const (
	MetaBatchID     = "batch-id"
	MetaSourceName  = "source-filename"
	MetaSHA256      = "sha256"
	MetaUploadedBy  = "uploaded-by"
	MetaReportKind  = "report-kind"
	MetaRequestedBy = "requested-by"
	MetaArchivedAt  = "archived-at"
)

// Object is one archived file.
type Object struct {
	Key         string
	ContentType string
	Metadata    map[string]string
	Data        []byte
}

// Backend writes archived objects to a single bucket.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, obj Object) error
	Bucket() string
}

// ImportUpload is a household file as received by the import endpoint.
type ImportUpload struct {
	BatchID    string
	Filename   string
	SHA256     string
	UploadedBy int
	Data       []byte
}

// ReportFile is a rendered report download.
type ReportFile struct {
	Format      string
	ContentType string
	RequestedBy int
	Data        []byte
}

// Storage archives uploaded household files and generated reports.
type Storage struct {
	backend Backend
	now     func() time.Time
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend, now: time.Now}
}

// FromConfig builds the configured backend and ensures its bucket exists.
// It returns nil when archiving is disabled.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend Backend
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "minio":
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// ArchiveImport stores an uploaded household file under
// imports/<batch>/<filename> and returns the object key.
func (s *Storage) ArchiveImport(ctx context.Context, upload ImportUpload) (string, error) {
	name := safeName(upload.Filename)
	obj := Object{
		Key:         path.Join("imports", upload.BatchID, name),
		ContentType: contentTypeFor(name),
		Metadata: s.metadata(
			MetaBatchID, upload.BatchID,
			MetaSourceName, name,
			MetaSHA256, upload.SHA256,
			MetaUploadedBy, actorID(upload.UploadedBy),
		),
		Data: upload.Data,
	}
	if err := s.backend.Put(ctx, obj); err != nil {
		return "", err
	}
	return obj.Key, nil
}

// ArchiveReport stores a generated report under
// reports/<format>/<timestamp>.<format> and returns the object key.
func (s *Storage) ArchiveReport(ctx context.Context, file ReportFile) (string, error) {
	format := strings.ToLower(file.Format)
	obj := Object{
		Key:         path.Join("reports", format, s.now().UTC().Format("20060102T150405Z")+"."+format),
		ContentType: file.ContentType,
		Metadata: s.metadata(
			MetaReportKind, format,
			MetaRequestedBy, actorID(file.RequestedBy),
		),
		Data: file.Data,
	}
	if err := s.backend.Put(ctx, obj); err != nil {
		return "", err
	}
	return obj.Key, nil
}

// metadata builds an object metadata map from key/value pairs, dropping
// empty values and stamping the archive time.
func (s *Storage) metadata(pairs ...string) map[string]string {
	meta := map[string]string{MetaArchivedAt: s.now().UTC().Format(time.RFC3339)}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			meta[pairs[i]] = pairs[i+1]
		}
	}
	return meta
}

func actorID(id int) string {
	if id <= 0 {
		return ""
	}
	return strconv.Itoa(id)
}

func safeName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
