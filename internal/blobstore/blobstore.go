// Package blobstore abstracts the object storage that holds uploaded
// app binaries and avatar images. Uploads never pass through this
// service: clients PUT directly against a presigned URL.
package blobstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresignedUpload is a short-lived direct-upload grant.
type PresignedUpload struct {
	URL       string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectStore grants presigned uploads and deletes stored objects.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (PresignedUpload, error)
	Delete(ctx context.Context, key string) error
}

// ArtifactKey builds the storage key for an uploaded app binary.
func ArtifactKey(filename string) string {
	return fmt.Sprintf("apps/%s-%s", uuid.NewString(), sanitizeFilename(filename))
}

// AvatarKey builds the storage key for an account's profile image.
func AvatarKey(accountID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("profile-images/%s/%s%s", accountID, uuid.NewString(), ext)
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}
