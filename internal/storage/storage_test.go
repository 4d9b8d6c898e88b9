package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/catalog/pkg/errors"
)

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1760000000123)
	assert.Equal(t, "1760000000123-ao.png", ObjectKey(now, "ao.png"))
	assert.Equal(t, "1760000000123-ao.png", ObjectKey(now, "../../etc/ao.png"))
	assert.Equal(t, "1760000000123-ao.png", ObjectKey(now, `C:\Users\me\ao.png`))
	assert.Equal(t, "1760000000123-file", ObjectKey(now, ""))
}

func TestObjectURLRoundTrip(t *testing.T) {
	u := ObjectURL("http://localhost:9000/", "productimages", "1760000000123-áo thun.png")
	assert.Equal(t, "http://localhost:9000/productimages/1760000000123-%C3%A1o%20thun.png", u)

	key, err := KeyFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, "1760000000123-áo thun.png", key)
}

func TestKeyFromURL_Invalid(t *testing.T) {
	_, err := KeyFromURL("http://localhost:9000/")
	assert.Error(t, err)

	_, err = KeyFromURL("://bad")
	assert.Error(t, err)
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name    string
		in      UploadInput
		wantErr bool
	}{
		{"png ok", UploadInput{Filename: "a.png", ContentType: "image/png", Size: 10}, false},
		{"pdf rejected", UploadInput{Filename: "a.pdf", ContentType: "application/pdf", Size: 10}, true},
		{"empty rejected", UploadInput{Filename: "a.png", ContentType: "image/png"}, true},
		{"too large", UploadInput{Filename: "a.png", ContentType: "image/png", Size: DefaultMaxFileSize + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(&tt.in, DefaultMaxFileSize)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
				return
			}
			assert.NoError(t, err)
		})
	}
}
