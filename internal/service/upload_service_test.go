package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"audioguide/pkg/errors"
	"audioguide/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	objects map[string]string
	types   map[string]string
	err     error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string]string{}, types: map[string]string{}}
}

func (m *memoryStorage) Upload(ctx context.Context, path, contentType string, body io.Reader) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[path] = string(data)
	m.types[path] = contentType
	return nil
}

func (m *memoryStorage) PublicURL(path string) string {
	return "https://storage.test/public/" + path
}

func newTestUploadService(storage ObjectStorage) *uploadService {
	svc := NewUploadService(storage, logger.Nop()).(*uploadService)
	svc.newID = func() string { return "fixed-id" }
	return svc
}

func TestUploadService_UploadAudio(t *testing.T) {
	storage := newMemoryStorage()
	svc := newTestUploadService(storage)

	result, err := svc.UploadAudio(context.Background(), "Trống đồng EN.mp3", "audio/mpeg", 3, strings.NewReader("ID3"))
	require.NoError(t, err)

	assert.Equal(t, "audio/fixed-id_Tr_ng___ng_EN.mp3", result.Path)
	assert.Equal(t, "https://storage.test/public/audio/fixed-id_Tr_ng___ng_EN.mp3", result.FileURL)
	assert.Equal(t, "ID3", storage.objects[result.Path])
	assert.Equal(t, "audio/mpeg", storage.types[result.Path])
}

func TestUploadService_Rejects(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int64
		storageErr  error
		wantType    errors.ErrorType
	}{
		{name: "wrong extension", filename: "guide.wav", contentType: "audio/wav", size: 10, wantType: errors.ErrorTypeValidation},
		{name: "wrong content type", filename: "guide.mp3", contentType: "image/png", size: 10, wantType: errors.ErrorTypeValidation},
		{name: "too large", filename: "guide.mp3", contentType: "audio/mpeg", size: MaxAudioSize + 1, wantType: errors.ErrorTypeValidation},
		{name: "no filename", filename: "", contentType: "audio/mpeg", size: 10, wantType: errors.ErrorTypeValidation},
		{name: "storage failure", filename: "guide.MP3", contentType: "audio/mpeg; charset=binary", size: 10, storageErr: errStoreDown, wantType: errors.ErrorTypeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newMemoryStorage()
			storage.err = tt.storageErr
			svc := newTestUploadService(storage)

			_, err := svc.UploadAudio(context.Background(), tt.filename, tt.contentType, tt.size, strings.NewReader("x"))

			assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
		})
	}
}

func TestUploadService_NoStorage(t *testing.T) {
	svc := newTestUploadService(nil)

	_, err := svc.UploadAudio(context.Background(), "guide.mp3", "audio/mpeg", 1, strings.NewReader("x"))

	assert.True(t, errors.IsType(err, errors.ErrorTypeExternal))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"guide.mp3":           "guide.mp3",
		"../../etc/guide.mp3": "guide.mp3",
		`C:\audio\guide.mp3`:  "guide.mp3",
		"my guide (1).mp3":    "my_guide__1_.mp3",
	}
	for input, want := range tests {
		assert.Equal(t, want, sanitizeFilename(input), input)
	}
}
