package repository_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/repository"
)

func TestDiskArchive_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive, err := repository.NewDiskArchive(dir)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.NewString()

	upload := repository.Upload{FileName: "März batches.csv", MimeHint: "text/csv", Data: []byte("brand,model\n")}
	require.NoError(t, archive.Put(ctx, id, upload))

	_, err = os.Stat(filepath.Join(dir, id+".bin"))
	require.NoError(t, err)

	got, err := archive.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, upload, *got)

	require.NoError(t, archive.Delete(ctx, id))
	_, err = archive.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, archive.Delete(ctx, id), repository.ErrNotFound)
}

func TestDiskArchive_RejectsPathIDs(t *testing.T) {
	archive, err := repository.NewDiskArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, archive.Put(ctx, "../escape", repository.Upload{Data: []byte("x")}))
	_, err = archive.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// --- Mock S3 ---

type mockS3 struct {
	mu      sync.Mutex
	objects map[string]*s3.PutObjectInput
	data    map[string][]byte
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string]*s3.PutObjectInput), data: make(map[string][]byte)}
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Bucket+"/"+*in.Key] = in
	m.data[*in.Bucket+"/"+*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (m *mockS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (m *mockS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not expected")
}

func (m *mockS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := *in.Bucket + "/" + *in.Key
	obj, ok := m.objects[k]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(m.data[k])), Metadata: obj.Metadata}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := *in.Bucket + "/" + *in.Key
	delete(m.objects, k)
	delete(m.data, k)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Archive_RoundTrip(t *testing.T) {
	client := newMockS3()
	archive := repository.NewS3Archive(client, "uploads", "/bulk-imports/")
	ctx := context.Background()
	id := uuid.NewString()

	upload := repository.Upload{FileName: "März batches.xlsx", MimeHint: "application/vnd.ms-excel", Data: []byte("PK\x03\x04")}
	require.NoError(t, archive.Put(ctx, id, upload))

	stored, ok := client.objects["uploads/bulk-imports/imports/"+id]
	require.True(t, ok)
	assert.Equal(t, "M%C3%A4rz+batches.xlsx", stored.Metadata["file-name"])

	got, err := archive.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, upload, *got)

	require.NoError(t, archive.Delete(ctx, id))
	_, err = archive.Get(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, archive.Delete(ctx, id))
}
