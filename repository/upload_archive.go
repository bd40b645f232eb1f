package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const DefaultBulkStorageDir = "./data/bulk_imports"

// DiskArchive keeps uploads as files under one directory: `<id>.bin` for
// the bytes and `<id>.json` for the name and MIME hint.
type DiskArchive struct {
	dir string
}

func NewDiskArchive(dir string) (*DiskArchive, error) {
	if dir == "" {
		dir = DefaultBulkStorageDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &DiskArchive{dir: dir}, nil
}

type uploadMeta struct {
	FileName string `json:"file_name"`
	MimeHint string `json:"mime_hint,omitempty"`
}

// paths rejects ids that are not UUIDs so a caller cannot escape the
// archive directory.
func (a *DiskArchive) paths(id string) (data, meta string, err error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", "", ErrNotFound
	}
	return filepath.Join(a.dir, id+".bin"), filepath.Join(a.dir, id+".json"), nil
}

func (a *DiskArchive) Put(_ context.Context, id string, upload Upload) error {
	dataPath, metaPath, err := a.paths(id)
	if err != nil {
		return fmt.Errorf("invalid upload id %q", id)
	}
	meta, err := json.Marshal(uploadMeta{FileName: upload.FileName, MimeHint: upload.MimeHint})
	if err != nil {
		return fmt.Errorf("marshal upload metadata: %w", err)
	}
	if err := os.WriteFile(dataPath, upload.Data, 0o644); err != nil {
		return fmt.Errorf("failed to persist file: %w", err)
	}
	if err := os.WriteFile(metaPath, meta, 0o644); err != nil {
		_ = os.Remove(dataPath)
		return fmt.Errorf("failed to persist file metadata: %w", err)
	}
	return nil
}

func (a *DiskArchive) Get(_ context.Context, id string) (*Upload, error) {
	dataPath, metaPath, err := a.paths(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	var meta uploadMeta
	raw, err := os.ReadFile(metaPath)
	if err == nil {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("parse upload metadata: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read upload metadata: %w", err)
	}
	return &Upload{FileName: meta.FileName, MimeHint: meta.MimeHint, Data: data}, nil
}

func (a *DiskArchive) Delete(_ context.Context, id string) error {
	dataPath, metaPath, err := a.paths(id)
	if err != nil {
		return err
	}
	_ = os.Remove(metaPath)
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// S3API is the subset of the S3 client the archive uses. Writes go through
// the transfer manager, which switches to multipart above its part size.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

const (
	metaFileName = "file-name"
	metaMimeHint = "mime-hint"
)

// S3Archive keeps uploads as objects under prefix. The original file name
// and MIME hint travel as object metadata.
type S3Archive struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func NewS3Archive(client S3API, bucket, prefix string) *S3Archive {
	return &S3Archive{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

func (a *S3Archive) key(id string) string {
	if a.prefix == "" {
		return path.Join("imports", id)
	}
	return path.Join(a.prefix, "imports", id)
}

func (a *S3Archive) Put(ctx context.Context, id string, upload Upload) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(id)),
		Body:        bytes.NewReader(upload.Data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			metaFileName: url.QueryEscape(upload.FileName),
			metaMimeHint: url.QueryEscape(upload.MimeHint),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

func (a *S3Archive) Get(ctx context.Context, id string) (*Upload, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 GetObject failed: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
	}
	fileName, _ := url.QueryUnescape(out.Metadata[metaFileName])
	mimeHint, _ := url.QueryUnescape(out.Metadata[metaMimeHint])
	return &Upload{FileName: fileName, MimeHint: mimeHint, Data: data}, nil
}

// Delete is idempotent: S3 does not report missing keys on delete.
func (a *S3Archive) Delete(ctx context.Context, id string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(id)),
	})
	if err != nil {
		return fmt.Errorf("s3 DeleteObject failed: %w", err)
	}
	return nil
}
