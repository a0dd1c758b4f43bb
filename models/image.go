package models

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

// Image is attached polymorphically: products carry catalog photos, purchase
// order items carry damage evidence taken at receiving.
type Image struct {
	ID            int    `gorm:"primary_key" json:"id"`
	ImageUrl      string `json:"image_url"`
	ThumbnailUrl  string `json:"thumbnail_url"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   int    `json:"reference_id"`
}

type NewImage struct {
	HasId
	HasIsDeleted
	ImageUrl     string `json:"image_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

type UploadResponse struct {
	ImageUrl     string `json:"image_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

func mapNewImages(imageInput []*NewImage, referenceType string, referenceId int) ([]*Image, error) {

	var images []*Image

	for _, input := range imageInput {
		image, err := input.MapInput(referenceType, referenceId)
		if err != nil {
			return nil, err
		}

		images = append(images, image)
	}
	return images, nil
}

func UploadSingleImage(ctx context.Context, filename string, file io.Reader) (*UploadResponse, error) {

	originalCloudURL, thumbnailCloudURL, err := UploadImage(ctx, filename, file)
	if err != nil {
		return nil, err
	}

	response := &UploadResponse{
		ImageUrl:     originalCloudURL,
		ThumbnailUrl: thumbnailCloudURL,
	}

	return response, nil
}

// RemoveImage deletes an uploaded image and its thumbnail, refusing while
// any row still references the URL.
func RemoveImage(ctx context.Context, fullUrl string) (*UploadResponse, error) {
	var count int64
	db := config.GetDB()

	if err := db.Model(&Image{}).WithContext(ctx).Where("image_url = ?", fullUrl).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cannot delete image associated with database")
	}

	// check if image exists
	objectName := extractObjectName(fullUrl)
	if objectName == "" {
		return nil, errors.New("invalid url")
	}
	if ok, err := utils.ObjectExistsInGCS(ctx, objectName); !ok || err != nil {
		return nil, errors.New("object does not exist")
	}

	// remove image + thumbnail from cloud
	if err := utils.DeleteImageFromGCS(ctx, objectName); err != nil {
		return nil, err
	}
	storagePath := strings.Split(objectName, "/")[0]
	filename := strings.Split(objectName, "/")[1]
	// remove thumbnail
	thumbnailObjectName := filepath.Join(storagePath, "thumbnails", filename)
	if err := utils.DeleteImageFromGCS(ctx, thumbnailObjectName); err != nil {
		return nil, err
	}

	return &UploadResponse{
		ImageUrl:     getCloudURL(objectName),
		ThumbnailUrl: getCloudURL(thumbnailObjectName),
	}, nil
}

// UploadImage stores the original plus a 200px thumbnail and returns both
// access URLs.
func UploadImage(ctx context.Context, filename string, file io.Reader) (string, string, error) {
	vendorId, _ := utils.GetVendorIdFromContext(ctx)

	if file == nil {
		return "", "", errors.New("nil file provided")
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", err
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		return "", "", errors.New("file has no extension")
	}

	uniqueFilename := vendorId + " " + utils.GenerateUniqueFilename() + ext
	originalKey := filepath.Join("products/", uniqueFilename)
	thumbnailKey := filepath.Join("products/", "thumbnails", uniqueFilename)

	if err := utils.SaveImageToGCS(ctx, originalKey, base64.StdEncoding.EncodeToString(data)); err != nil {
		return "", "", err
	}
	thumbnailData, err := generateThumbnail(data)
	if err != nil {
		return "", "", err
	}
	if err := utils.SaveImageToGCS(ctx, thumbnailKey, base64.StdEncoding.EncodeToString(thumbnailData)); err != nil {
		return "", "", err
	}

	return getCloudURL(originalKey), getCloudURL(thumbnailKey), nil
}

func getCloudURL(objectName string) string {
	return utils.BuildObjectAccessURL(objectName)
}

func extractObjectName(cloudUrl string) string {
	return utils.ExtractObjectKeyFromURL(cloudUrl)
}

func UploadFile(ctx context.Context, filename string, file io.Reader) (*UploadResponse, error) {

	objectName := "documents/" + filename

	err := utils.UploadFileToGCS(ctx, objectName, file)
	if err != nil {
		return nil, errors.New("failed to upload file to storage provider")
	}

	response := &UploadResponse{
		ImageUrl:     getCloudURL(objectName),
		ThumbnailUrl: "",
	}

	return response, nil
}

// generateThumbnail resizes to 200px wide (height keeps aspect) and encodes
// JPEG.
func generateThumbnail(originalData []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(originalData))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (img *Image) Store(tx *gorm.DB, ctx context.Context) error {
	if err := tx.WithContext(ctx).Create(&img).Error; err != nil {
		return err
	}
	return nil

}

func (img *Image) Update(tx *gorm.DB, ctx context.Context, data map[string]interface{}) error {
	// update existing image
	if err := tx.WithContext(ctx).Model(&img).Updates(data).Error; err != nil {
		return err
	}
	return nil
}

// expected img is loaded from db
func (img *Image) Delete(tx *gorm.DB, ctx context.Context) error {

	if err := tx.WithContext(ctx).Delete(&img).Error; err != nil {
		return err
	}
	if err := utils.DeleteImageFromGCS(ctx, extractObjectName(img.ImageUrl)); err != nil {
		return err
	}
	if err := utils.DeleteImageFromGCS(ctx, extractObjectName(img.ThumbnailUrl)); err != nil {
		return err
	}
	return nil
}

// map newImage to Image, for db.Create(&image)
func (input NewImage) MapInput(referenceType string, referenceId int) (*Image, error) {
	if err := utils.CheckImageExistInGCS(input.ImageUrl); err != nil {
		return nil, err
	}
	if err := utils.CheckImageExistInGCS(input.ThumbnailUrl); err != nil {
		return nil, err
	}
	return &Image{
		ReferenceType: referenceType,
		ReferenceID:   referenceId,
		ImageUrl:      input.ImageUrl,
		ThumbnailUrl:  input.ThumbnailUrl,
	}, nil
}

func (input NewImage) Fillable() (map[string]interface{}, error) {
	if err := utils.CheckImageExistInGCS(input.ImageUrl); err != nil {
		return nil, err
	}
	if err := utils.CheckImageExistInGCS(input.ThumbnailUrl); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"ImageUrl":     input.ImageUrl,
		"ThumbnailUrl": input.ThumbnailUrl,
	}, nil
}

func UpsertImages(ctx context.Context, tx *gorm.DB, inputImages []*NewImage, referenceType string, referenceId int) ([]*Image, error) {
	return UpsertPolymorphicAssociation(ctx, tx, inputImages, referenceType, referenceId)
}
