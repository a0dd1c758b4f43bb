package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

// Location is a physical site holding stock: storefront, vault or grow room.
type Location struct {
	ID        int       `gorm:"primary_key" json:"id"`
	VendorId  string    `gorm:"index;not null" json:"vendor_id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	City      string    `gorm:"size:100"  json:"city"`
	State     string    `gorm:"size:2"  json:"state"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLocation struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewLocation) validate(ctx context.Context, vendorId string, id int) error {
	// name
	if err := utils.ValidateUnique[Location](ctx, vendorId, "name", input.Name, id); err != nil {
		return err
	}
	// phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		input.Phone = utils.FormatPhoneNumber(input.Phone, utils.CountryCode)
		if err := utils.ValidateUnique[Location](ctx, vendorId, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateLocation(ctx context.Context, input *NewLocation) (*Location, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	if err := input.validate(ctx, vendorId, 0); err != nil {
		return nil, err
	}

	location := Location{
		VendorId: vendorId,
		Name:     input.Name,
		Phone:    input.Phone,
		Address:  input.Address,
		City:     input.City,
		State:    input.State,
		IsActive: utils.NewTrue(),
	}

	// db action
	db := config.GetDB()
	err := db.WithContext(ctx).Create(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func UpdateLocation(ctx context.Context, id int, input *NewLocation) (*Location, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	if err := input.validate(ctx, vendorId, id); err != nil {
		return nil, err
	}

	location, err := utils.FetchModel[Location](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&location).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Phone":   input.Phone,
		"Address": input.Address,
		"City":    input.City,
		"State":   input.State,
	}).Error
	if err != nil {
		return nil, err
	}

	return location, nil
}

func DeleteLocation(ctx context.Context, id int) (*Location, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	result, err := utils.FetchModel[Location](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}

	// check if location is used
	var count int64
	if err := db.WithContext(ctx).Model(&StockLevel{}).
		Where("location_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("location has stock")
	}

	// db action
	err = db.WithContext(ctx).Delete(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetLocation(ctx context.Context, id int) (*Location, error) {
	return GetResource[Location](ctx, id)
}

func ListLocation(ctx context.Context, name *string) ([]*Location, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var results []*Location

	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
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

func ToggleActiveLocation(ctx context.Context, id int, isActive bool) (*Location, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	return ToggleActiveModel[Location](ctx, vendorId, id, isActive)
}
