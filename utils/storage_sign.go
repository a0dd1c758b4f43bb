package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"
)

// SignedUpload is handed to the mobile client so it can PUT large photos
// straight to the bucket instead of proxying them through the API.
type SignedUpload struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// SignUpload issues a V4 signed PUT URL for objectKey. Signing material comes
// from an explicit service-account key when one is configured, otherwise from
// the IAM SignBlob API under the runtime service account.
func SignUpload(ctx context.Context, objectKey, contentType string, expires time.Duration) (*SignedUpload, error) {
	if provider := GetStorageProvider(); provider != StorageProviderGCS {
		return nil, fmt.Errorf("storage provider %q is not supported for signed uploads", provider)
	}
	bucket, err := attachmentBucket()
	if err != nil {
		return nil, err
	}

	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		Expires:     time.Now().Add(expires),
		ContentType: contentType,
	}
	if err := configureSigner(ctx, opts); err != nil {
		return nil, err
	}

	signedURL, err := storage.SignedURL(bucket, objectKey, opts)
	if err != nil {
		return nil, err
	}
	return &SignedUpload{
		UploadURL: signedURL,
		Method:    opts.Method,
		Headers:   map[string]string{"Content-Type": contentType},
		ObjectKey: objectKey,
		AccessURL: BuildObjectAccessURL(objectKey),
		ExpiresAt: opts.Expires,
	}, nil
}

func configureSigner(ctx context.Context, opts *storage.SignedURLOptions) error {
	// 1. Full service-account JSON in env (local development).
	if credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); credJSON != "" {
		var key struct {
			ClientEmail string `json:"client_email"`
			PrivateKey  string `json:"private_key"`
		}
		if err := json.Unmarshal([]byte(credJSON), &key); err != nil {
			return fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
		}
		if key.ClientEmail == "" || key.PrivateKey == "" {
			return errors.New("GCS_CREDENTIALS_JSON missing client_email or private_key")
		}
		opts.GoogleAccessID = key.ClientEmail
		opts.PrivateKey = unescapePrivateKey(key.PrivateKey)
		return nil
	}

	// 2. Split email + key pair in env.
	signerEmail := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL"))
	if privateKey := strings.TrimSpace(os.Getenv("GCS_SIGNER_PRIVATE_KEY")); signerEmail != "" && privateKey != "" {
		opts.GoogleAccessID = signerEmail
		opts.PrivateKey = unescapePrivateKey(privateKey)
		return nil
	}

	// 3. No key material: sign through the IAM credentials API (Cloud Run).
	if signerEmail == "" && metadata.OnGCE() {
		defaultEmail, err := metadata.Email("default")
		if err != nil {
			return fmt.Errorf("resolve default service account email: %w", err)
		}
		signerEmail = defaultEmail
	}
	if signerEmail == "" {
		return errors.New("GCS_SIGNER_EMAIL is required when no private key is provided")
	}

	signBytes, err := iamSignBytes(ctx, signerEmail)
	if err != nil {
		return err
	}
	opts.GoogleAccessID = signerEmail
	opts.SignBytes = signBytes
	return nil
}

// env-delivered PEM keys carry literal \n sequences
func unescapePrivateKey(key string) []byte {
	return []byte(strings.ReplaceAll(key, "\\n", "\n"))
}

func iamSignBytes(ctx context.Context, serviceAccountEmail string) (func([]byte) ([]byte, error), error) {
	creds, err := google.FindDefaultCredentials(ctx, iamcredentials.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("load ADC credentials: %w", err)
	}
	svc, err := iamcredentials.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create iamcredentials service: %w", err)
	}
	resource := fmt.Sprintf("projects/-/serviceAccounts/%s", serviceAccountEmail)

	return func(data []byte) ([]byte, error) {
		resp, err := svc.Projects.ServiceAccounts.SignBlob(resource, &iamcredentials.SignBlobRequest{
			Payload: base64.StdEncoding.EncodeToString(data),
		}).Do()
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(resp.SignedBlob)
	}, nil
}
