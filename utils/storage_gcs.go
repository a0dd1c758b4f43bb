package utils

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const (
	StorageProviderGCS = "gcs"
)

// GetStorageProvider reads STORAGE_PROVIDER, defaulting to GCS. The mobile
// client only speaks the GCS flow today; the env hook exists so a future
// provider can be introduced without touching handlers.
func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}

// GetGCSClient builds a storage client from ADC, or from explicit JSON when
// GCS_CREDENTIALS_JSON is set (local development).
func GetGCSClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); credJSON != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func attachmentBucket() (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucket, nil
}

// writeObject streams data into the attachment bucket under objectKey.
func writeObject(ctx context.Context, objectKey string, data []byte, contentType string, publicRead bool) error {
	bucket, err := attachmentBucket()
	if err != nil {
		return err
	}
	client, err := GetGCSClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucket).Object(objectKey).NewWriter(ctx)
	wc.ContentType = contentType
	if publicRead {
		wc.Metadata = map[string]string{"x-goog-acl": "public-read"}
	}
	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("write object %s: %w", objectKey, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", objectKey, err)
	}
	return nil
}

// SaveImageToGCS stores a base64-encoded JPEG (product photos, receiving
// damage photos) under objectKey.
func SaveImageToGCS(ctx context.Context, objectKey, imageData string) error {
	decoded, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return err
	}
	return writeObject(ctx, objectKey, decoded, "image/jpeg", true)
}

// Attachment types the upload endpoints accept: photos plus the document
// formats suppliers send (CoAs, invoices, manifests).
var allowedAttachmentTypes = map[string]bool{
	"application/pdf":          true,
	"application/msword":       true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

// UploadFileToGCS sniffs the content type, rejects anything outside the
// attachment allowlist, and stores the file under objectKey.
func UploadFileToGCS(ctx context.Context, objectKey string, fileContent io.Reader) error {
	data, err := io.ReadAll(fileContent)
	if err != nil {
		return fmt.Errorf("read file content: %w", err)
	}

	mimeType := http.DetectContentType(data)
	// docx/xlsx are zip containers; DetectContentType cannot tell them apart
	if mimeType == "application/zip" {
		switch {
		case strings.HasSuffix(objectKey, ".docx"):
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		case strings.HasSuffix(objectKey, ".xlsx"):
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	}
	if !allowedAttachmentTypes[mimeType] {
		return fmt.Errorf("unsupported file type: %s", mimeType)
	}

	return writeObject(ctx, objectKey, data, mimeType, true)
}

// UploadBytesToGCS stores pre-built content (resized thumbnails, generated
// exports) without the attachment-type allowlist.
func UploadBytesToGCS(ctx context.Context, objectKey string, data []byte, contentType string) error {
	return writeObject(ctx, objectKey, data, contentType, false)
}

// DeleteImageFromGCS removes objectKey; a missing object is not an error, so
// delete flows stay idempotent.
func DeleteImageFromGCS(ctx context.Context, objectKey string) error {
	bucket, err := attachmentBucket()
	if err != nil {
		return err
	}
	client, err := GetGCSClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Bucket(bucket).Object(objectKey).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// ObjectExistsInGCS checks objectKey via Attrs, without downloading content.
func ObjectExistsInGCS(ctx context.Context, objectKey string) (bool, error) {
	bucket, err := attachmentBucket()
	if err != nil {
		return false, err
	}
	client, err := GetGCSClient(ctx)
	if err != nil {
		return false, err
	}
	defer client.Close()

	_, err = client.Bucket(bucket).Object(objectKey).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CheckImageExistInGCS verifies a client-supplied image URL points at a real
// object: bucket lookup when the URL maps to an object key, HEAD otherwise.
func CheckImageExistInGCS(imageURL string) error {
	if objectKey := ExtractObjectKeyFromURL(imageURL); objectKey != "" {
		ok, err := ObjectExistsInGCS(context.Background(), objectKey)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("image does not exist")
		}
		return nil
	}

	resp, err := http.Head(imageURL)
	if err != nil {
		return errors.New("invalid image url")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("image does not exist")
	}
	return nil
}
