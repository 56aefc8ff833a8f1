package storage

import (
	"context"
	"errors"
	"testing"

	"docshare/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMapNotFound(t *testing.T) {
	err := mapNotFound(minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	other := minio.ErrorResponse{Code: "AccessDenied"}
	assert.Equal(t, error(other), mapNotFound(other))

	plain := errors.New("dial tcp: connection refused")
	assert.Equal(t, plain, mapNotFound(plain))
}

func TestNewMinIO_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  config.MinIOConfig
		want string
	}{
		{name: "missing endpoint", cfg: config.MinIOConfig{}, want: "minio endpoint is required"},
		{name: "missing credentials", cfg: config.MinIOConfig{Endpoint: "localhost:9000"}, want: "minio credentials are required"},
		{name: "missing bucket", cfg: config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, want: "minio bucket is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMinIO(ctx, tt.cfg)
			assert.EqualError(t, err, tt.want)
			assert.Nil(t, s)
		})
	}
}
