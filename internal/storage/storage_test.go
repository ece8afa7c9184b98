package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	putKeys    []string
	removed    []string
	putErr     error
	removeErr  error
	removeHits int
}

func (f *fakeObjectAPI) PutObject(_ context.Context, _, key string, _ io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.putKeys = append(f.putKeys, key)
	return minio.UploadInfo{Key: key}, nil
}

func (f *fakeObjectAPI) RemoveObject(_ context.Context, _, key string, _ minio.RemoveObjectOptions) error {
	f.removeHits++
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, key)
	return nil
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"simple", "http://localhost:9000/maps/maps/1/a.png", "maps/1/a.png", false},
		{"other host", "https://cdn.example.com/maps/x.jpg", "x.jpg", false},
		{"wrong bucket", "http://localhost:9000/other/x.jpg", "", true},
		{"bucket only", "http://localhost:9000/maps/", "", true},
		{"unparseable", "http://[::1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeyFromURL(tt.url, "maps")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrForeignObject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectURL_RoundTrip(t *testing.T) {
	u := ObjectURL("http://localhost:9000/", "maps", "maps/3/img.png")
	assert.Equal(t, "http://localhost:9000/maps/maps/3/img.png", u)
	key, err := KeyFromURL(u, "maps")
	require.NoError(t, err)
	assert.Equal(t, "maps/3/img.png", key)
}

func TestMinioStore_PutAndDelete(t *testing.T) {
	api := &fakeObjectAPI{}
	s := NewMinioStore(api, "maps", "http://minio:9000", DefaultBreakerConfig(), slog.Default())
	ctx := context.Background()

	u, err := s.Put(ctx, "maps/1/a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/maps/maps/1/a.png", u)
	assert.Equal(t, []string{"maps/1/a.png"}, api.putKeys)

	require.NoError(t, s.Delete(ctx, u))
	assert.Equal(t, []string{"maps/1/a.png"}, api.removed)
}

func TestMinioStore_BreakerOpens(t *testing.T) {
	api := &fakeObjectAPI{removeErr: errors.New("connection reset")}
	s := NewMinioStore(api, "maps", "http://minio:9000",
		BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, slog.Default())
	ctx := context.Background()
	u := "http://minio:9000/maps/k.png"

	require.Error(t, s.Delete(ctx, u))
	require.Error(t, s.Delete(ctx, u))
	assert.Equal(t, "open", s.State())

	err := s.Delete(ctx, u)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, api.removeHits, "open breaker must not reach the backend")
}

func TestMinioStore_DeleteRejectsForeignURL(t *testing.T) {
	api := &fakeObjectAPI{}
	s := NewMinioStore(api, "maps", "http://minio:9000", DefaultBreakerConfig(), slog.Default())
	err := s.Delete(context.Background(), "http://minio:9000/other/k.png")
	assert.ErrorIs(t, err, ErrForeignObject)
	assert.Zero(t, api.removeHits)
}
