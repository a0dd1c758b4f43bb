package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// attachmentMimeTypes additionally allows documents: certificates of analysis
// and supplier manifests arrive as PDFs or sheets.
var attachmentMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"image/jpeg": true,
	"image/png":  true,
}

type uploadSignRequest struct {
	FileName      string `json:"file_name"`
	MimeType      string `json:"mime_type"`
	Size          int64  `json:"size"`
	Entity        string `json:"entity"`
	ReferenceType string `json:"reference_type"`
	ReferenceId   int    `json:"reference_id"`
}

type uploadCompleteRequest struct {
	ObjectKey     string `json:"object_key"`
	MimeType      string `json:"mime_type"`
	ReferenceType string `json:"reference_type"`
	ReferenceId   int    `json:"reference_id"`
}

type uploadSignResponse struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"object_key"`
	AccessURL string            `json:"access_url"`
	ExpiresAt string            `json:"expires_at"`
}

type uploadCompleteResponse struct {
	ObjectKey          string `json:"object_key"`
	ImageURL           string `json:"image_url,omitempty"`
	ThumbnailURL       string `json:"thumbnail_url,omitempty"`
	ThumbnailObjectKey string `json:"thumbnail_object_key,omitempty"`
	ImageId            int    `json:"image_id,omitempty"`
}

// SignUploadHandler issues a short-lived signed PUT URL so mobile clients
// upload photos straight to the bucket instead of through the API.
func SignUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		requestID := requestIDFromHeaders(c)

		vendorId, ok := requireVendor(c)
		if !ok {
			return
		}

		var req uploadSignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		if req.FileName == "" || req.MimeType == "" || req.Size <= 0 {
			respondError(c, &models.ValidationError{Field: "file_name", Message: "file_name, mime_type and size are required"})
			return
		}
		if req.Size > maxUploadSizeBytes {
			respondError(c, &models.ValidationError{Field: "size", Message: "file size exceeds 5MB limit"})
			return
		}
		if strings.HasPrefix(req.MimeType, "image/") {
			if !imageMimeTypes[req.MimeType] {
				respondError(c, &models.ValidationError{Field: "mime_type", Message: "unsupported image type"})
				return
			}
		} else if !attachmentMimeTypes[req.MimeType] {
			respondError(c, &models.ValidationError{Field: "mime_type", Message: "unsupported file type"})
			return
		}

		ext := strings.ToLower(filepath.Ext(req.FileName))
		if ext == "" {
			ext = extensionFromMimeType(req.MimeType)
		}
		if ext == "" {
			respondError(c, &models.ValidationError{Field: "file_name", Message: "file extension is required"})
			return
		}

		entity := sanitizeSegment(strings.ToLower(strings.TrimSpace(req.Entity)))
		if entity == "" {
			entity = "uploads"
		}
		objectKey := path.Join(vendorId, entity, uuid.New().String()+ext)

		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			respondError(c, &models.ValidationError{Field: "provider", Message: "storage provider not supported"})
			return
		}

		signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, 15*time.Minute)
		if err != nil {
			logUploadError(logger, err, utils.GetStorageProvider(), requestID)
			message := "failed to sign upload"
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
				message = fmt.Sprintf("failed to sign upload: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": models.ErrorKindInternal, "message": message}})
			return
		}

		logger.WithFields(logrus.Fields{
			"vendor_id":  vendorId,
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, gin.H{
			"data": uploadSignResponse{
				UploadURL: signed.UploadURL,
				Method:    signed.Method,
				Headers:   signed.Headers,
				ObjectKey: signed.ObjectKey,
				AccessURL: signed.AccessURL,
				ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
			},
		})
	}
}

// CompleteUploadHandler runs after the client's direct PUT: it builds the
// thumbnail and, when a reference is supplied, attaches the image to the
// product or purchase order line it belongs to.
func CompleteUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		requestID := requestIDFromHeaders(c)

		vendorId, ok := requireVendor(c)
		if !ok {
			return
		}

		var req uploadCompleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		if req.ObjectKey == "" {
			respondError(c, &models.ValidationError{Field: "object_key", Message: "object_key is required"})
			return
		}
		if !strings.HasPrefix(req.ObjectKey, vendorId+"/") {
			respondError(c, &models.ValidationError{Field: "object_key", Message: "invalid object key"})
			return
		}

		ctx := c.Request.Context()
		response := uploadCompleteResponse{ObjectKey: req.ObjectKey}

		thumbnailKey, err := createThumbnail(ctx, req.ObjectKey)
		if err != nil {
			logUploadError(logger, err, utils.GetStorageProvider(), requestID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": models.ErrorKindInternal, "message": "failed to generate thumbnail"}})
			return
		}
		response.ImageURL = utils.BuildObjectAccessURL(req.ObjectKey)
		response.ThumbnailURL = utils.BuildObjectAccessURL(thumbnailKey)
		response.ThumbnailObjectKey = thumbnailKey

		if req.ReferenceType != "" && req.ReferenceId > 0 {
			image := &models.Image{
				ImageUrl:      response.ImageURL,
				ThumbnailUrl:  response.ThumbnailURL,
				ReferenceType: req.ReferenceType,
				ReferenceID:   req.ReferenceId,
			}
			if err := image.Store(config.GetDB(), ctx); err != nil {
				respondError(c, err)
				return
			}
			response.ImageId = image.ID
		}

		logger.WithFields(logrus.Fields{
			"object_key": req.ObjectKey,
			"status":     "completed",
		}).Info("[upload.complete]")

		c.JSON(http.StatusOK, gin.H{"data": response})
	}
}

// UploadImageHandler is the one-shot multipart path for small photos: resize
// and store server-side, no sign/complete round trip.
func UploadImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondError(c, &models.ValidationError{Field: "file", Message: "image file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			respondError(c, &models.ValidationError{Field: "file", Message: "file size exceeds 5MB limit"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer file.Close()

		response, err := models.UploadSingleImage(c.Request.Context(), fileHeader.Filename, file)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response)
	}
}

type removeImageRequest struct {
	Url string `json:"url" binding:"required"`
}

func RemoveImageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var req removeImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		response, err := models.RemoveImage(c.Request.Context(), req.Url)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response)
	}
}

// UploadObjectHandler proxies a bucket object for clients that cannot read
// signed URLs, e.g. older scanner firmware behind strict allowlists.
func UploadObjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		objectKey := strings.TrimSpace(c.Query("key"))
		if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
			respondError(c, &models.ValidationError{Field: "key", Message: "invalid key"})
			return
		}
		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			respondError(c, &models.ValidationError{Field: "provider", Message: "storage provider not supported"})
			return
		}

		client, err := utils.GetGCSClient(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		defer client.Close()

		bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
		if bucket == "" {
			respondError(c, errors.New("GCS_BUCKET is required"))
			return
		}
		obj := client.Bucket(bucket).Object(objectKey)
		attrs, err := obj.Attrs(c.Request.Context())
		if err != nil {
			respondError(c, &models.NotFoundError{Resource: "object", Id: 0})
			return
		}
		reader, err := obj.NewReader(c.Request.Context())
		if err != nil {
			respondError(c, &models.NotFoundError{Resource: "object", Id: 0})
			return
		}
		defer reader.Close()

		if attrs != nil && attrs.ContentType != "" {
			c.Writer.Header().Set("Content-Type", attrs.ContentType)
		}
		if attrs != nil && attrs.Size > 0 {
			c.Writer.Header().Set("Content-Length", fmt.Sprintf("%d", attrs.Size))
		}
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, reader)
	}
}

func createThumbnail(ctx context.Context, objectKey string) (string, error) {
	client, err := utils.GetGCSClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	reader, err := client.Bucket(bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxUploadSizeBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return "", errors.New("file size exceeds 5MB limit")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}

func sanitizeSegment(input string) string {
	var out strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	default:
		return ""
	}
}

func logUploadError(logger *logrus.Logger, err error, provider string, requestID string) {
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"provider":   provider,
		"request_id": requestID,
	}).Error("[upload.error]")
}

func requestIDFromHeaders(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Correlation-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return fmt.Sprintf("upload-%d", time.Now().UnixNano())
}
