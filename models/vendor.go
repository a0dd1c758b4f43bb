package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

// Vendor is the tenant root: one row per licensed retailer. Every other table
// carries its id.
type Vendor struct {
	ID            uuid.UUID `gorm:"primary_key" json:"id"`
	LogoUrl       string    `json:"logo_url"`
	Name          string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName   string    `gorm:"size:100" json:"contact_name"`
	Email         string    `gorm:"size:255" json:"email"`
	Phone         string    `gorm:"size:20" json:"phone"`
	LicenseNumber string    `gorm:"size:100" json:"license_number"`
	Address       string    `gorm:"type:text" json:"address"`
	City          string    `gorm:"size:100" json:"city"`
	State         string    `gorm:"size:2" json:"state"`
	Timezone      string    `gorm:"size:50" json:"timezone"`
	// TrackTraceId holds "provider:license" when the vendor reports to a state
	// track-and-trace system, e.g. "metrc:C11-0000123-LIC". Empty disables sync.
	TrackTraceId      *string   `gorm:"size:255;default:NULL" json:"track_trace_id"`
	PrimaryLocationId int       `gorm:"not null" json:"primary_location_id"`
	IsActive          *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	LogoUrl       string `json:"logo_url"`
	Name          string `json:"name" binding:"required"`
	ContactName   string `json:"contact_name"`
	Email         string `json:"email" binding:"required"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Timezone      string `json:"timezone"`
}

func (vendor *Vendor) StoreRedis() error {
	return config.SetRedisObject("Vendor:"+fmt.Sprint(vendor.ID), vendor, 0)
}

func (vendor *Vendor) RemoveRedis() error {
	return config.RemoveRedisKey("Vendor:" + fmt.Sprint(vendor.ID))
}

// GetTrackTrace splits TrackTraceId into provider and license.
func (vendor *Vendor) GetTrackTrace() (provider, license string, err error) {
	if vendor.TrackTraceId != nil && *vendor.TrackTraceId != "" {
		parts := strings.SplitN(*vendor.TrackTraceId, ":", 2)
		if len(parts) == 2 {
			return parts[0], parts[1], nil
		}
	}
	return "", "", errors.New("track and trace reporting disabled")
}

func (input *NewVendor) validate(ctx context.Context, id string) error {
	// name
	if err := utils.ValidateUnique[Vendor](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	// email
	if err := utils.ValidateUnique[Vendor](ctx, "", "email", input.Email, id); err != nil {
		return err
	}
	// phone
	if input.Phone != "" {
		if err := utils.ValidateUnique[Vendor](ctx, "", "phone", input.Phone, id); err != nil {
			return err
		}
	}
	// license
	if input.LicenseNumber != "" {
		if err := utils.ValidateUnique[Vendor](ctx, "", "license_number", input.LicenseNumber, id); err != nil {
			return err
		}
	}
	return nil
}

// CreateVendor provisions a tenant: the vendor row, a primary location and the
// owner login, committed together.
func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {

	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	db := config.GetDB()

	tx := db.Begin()

	VID := uuid.New()
	timezone := "America/Denver"
	if input.Timezone != "" {
		timezone = input.Timezone
	}

	vendor := Vendor{
		ID:            VID,
		LogoUrl:       input.LogoUrl,
		Name:          input.Name,
		ContactName:   input.ContactName,
		Email:         input.Email,
		Phone:         input.Phone,
		LicenseNumber: input.LicenseNumber,
		Address:       input.Address,
		City:          input.City,
		State:         input.State,
		Timezone:      timezone,
		IsActive:      utils.NewTrue(),
	}

	// create vendor
	err := tx.WithContext(ctx).Create(&vendor).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	vendorId := vendor.ID.String()
	ctx = context.WithValue(ctx, utils.ContextKeyVendorId, vendorId)

	// create default location
	locationInput := &NewLocation{
		Name: "Main Store",
	}
	location, err := CreateDefaultLocation(tx, ctx, locationInput, vendorId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// create owner login
	if _, err := CreateDefaultOwner(tx, ctx, vendorId, vendor.Email, vendor.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	// seed adjustment reason catalog
	if _, err := CreateDefaultReasons(tx, ctx, vendorId); err != nil {
		tx.Rollback()
		return nil, err
	}

	// set primary location
	err = tx.WithContext(ctx).Model(&vendor).Updates(map[string]interface{}{
		"PrimaryLocationId": location.ID,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.ClearRedisAdmin[AllVendor](); err != nil {
		return nil, err
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	if err := input.validate(ctx, vendorId); err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	var vendor Vendor
	if err := db.WithContext(ctx).Where("id = ?", vendorId).First(&vendor).Error; err != nil {
		return nil, err
	}

	err := db.WithContext(ctx).Model(&vendor).Updates(map[string]interface{}{
		"LogoUrl":       input.LogoUrl,
		"Name":          input.Name,
		"ContactName":   input.ContactName,
		"Email":         input.Email,
		"Phone":         input.Phone,
		"LicenseNumber": input.LicenseNumber,
		"Address":       input.Address,
		"City":          input.City,
		"State":         input.State,
	}).Error
	if err != nil {
		return nil, err
	}

	// caching
	if err := vendor.RemoveRedis(); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisAdmin[AllVendor](); err != nil {
		return nil, err
	}
	return &vendor, nil
}

func ToggleActiveVendor(ctx context.Context, id uuid.UUID, isActive bool) (*Vendor, error) {

	db := config.GetDB()
	var result Vendor

	// check exists
	err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	// db action
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"IsActive": isActive,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// toggling related users
	err = tx.WithContext(ctx).Model(&User{}).Where("vendor_id = ?", id).Updates(map[string]interface{}{
		"IsActive": isActive,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := result.RemoveRedis(); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.ClearRedisAdmin[AllVendor](); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &result, tx.Commit().Error
}

func GetVendorById(ctx context.Context, id string) (*Vendor, error) {

	var result Vendor

	exists, err := config.GetRedisObject("Vendor:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func GetVendor(ctx context.Context) (*Vendor, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	return GetVendorById(ctx, vendorId)
}

func GetVendors(ctx context.Context, name *string) ([]*Vendor, error) {

	db := config.GetDB()
	var results []*Vendor

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// BootstrapData bundles the vendor and its reference lists into one JSON
// payload so the mobile app hydrates in a single round trip at launch.
// Products are excluded; the catalog ships through the paginated endpoint.
func BootstrapData(ctx context.Context) (string, error) {

	data := make(map[string]interface{})
	vendor, err := GetVendor(ctx)
	if err != nil {
		return "", err
	}
	data["vendor"] = vendor

	locations, err := ListAllLocation(ctx)
	if err != nil {
		return "", err
	}
	data["locations"] = locations

	categories, err := ListAllProductCategory(ctx)
	if err != nil {
		return "", err
	}
	data["categories"] = categories

	reasons, err := ListAllReason(ctx)
	if err != nil {
		return "", err
	}
	data["reasons"] = reasons

	suppliers, err := ListAllSupplier(ctx)
	if err != nil {
		return "", err
	}
	data["suppliers"] = suppliers

	return utils.MarshalToJSON(data)
}
