package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

// get AllModelMap, redis or db
func MapAllModel[ModelT any, AllT Identifier](ctx context.Context) (map[int]*AllT, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	// retrieve from redis
	key := utils.GetTypeName[AllT]() + "Map:" + vendorId

	var allMap map[int]*AllT

	// retrieve from redis
	if exists, err := config.GetRedisObject(key, &allMap); err != nil {
		return nil, err
	} else if !exists {
		// if the map has not been cached yet
		// fetch resources and constrcut the map, cache the result

		allMap = make(map[int]*AllT)
		var allSlice []*AllT
		db := config.GetDB()
		var m ModelT
		dbCtx := db.WithContext(ctx).Model(&m)
		dbCtx.Where("vendor_id = ?", vendorId)
		if err := dbCtx.Find(&allSlice).Error; err != nil {
			return nil, err
		}

		// fill the map
		for _, allModel := range allSlice {
			allMap[(*allModel).GetId()] = allModel
		}

		// store redis
		var duration time.Duration
		if err := config.SetRedisObject(key, &allMap, duration); err != nil {
			return nil, err
		}
	}

	return allMap, nil
}

// embedding struct will receive ID field, satisfy Identifier interface
type HasId struct {
	ID int `json:"id"`
}

func (h HasId) GetId() int {
	return h.ID
}

type HasUid struct {
	ID uuid.UUID `json:"id"`
}

func (h HasUid) GetId() uuid.UUID {
	return h.ID
}

type AllLocation struct {
	HasId
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type AllProductCategory struct {
	HasId
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type AllReason struct {
	HasId
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type AllSupplier struct {
	HasId
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type AllUser struct {
	HasId
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type AllVendor struct {
	HasUid
	LogoURL  string `json:"logoUrl"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
}

func ListAllLocation(ctx context.Context) ([]*AllLocation, error) {
	return ListAllResource[Location, AllLocation](ctx, "name")
}

func MapAllLocation(ctx context.Context) (map[int]*AllLocation, error) {
	return MapAllModel[Location, AllLocation](ctx)
}

func ListAllProductCategory(ctx context.Context) ([]*AllProductCategory, error) {
	return ListAllResource[ProductCategory, AllProductCategory](ctx, "name")
}

func MapAllProductCategory(ctx context.Context) (map[int]*AllProductCategory, error) {
	return MapAllModel[ProductCategory, AllProductCategory](ctx)
}

func ListAllReason(ctx context.Context) ([]*AllReason, error) {
	return ListAllResource[Reason, AllReason](ctx, "name")
}

func MapAllReason(ctx context.Context) (map[int]*AllReason, error) {
	return MapAllModel[Reason, AllReason](ctx)
}

func ListAllSupplier(ctx context.Context) ([]*AllSupplier, error) {
	return ListAllResource[Supplier, AllSupplier](ctx, "name")
}

func MapAllSupplier(ctx context.Context) (map[int]*AllSupplier, error) {
	return MapAllModel[Supplier, AllSupplier](ctx)
}

func ListAllUser(ctx context.Context) ([]*AllUser, error) {
	return ListAllResource[User, AllUser](ctx, "name")
}

func MapAllUser(ctx context.Context) (map[int]*AllUser, error) {
	return MapAllModel[User, AllUser](ctx)
}

func ListAllVendor(ctx context.Context) ([]*AllVendor, error) {
	return ListAllAdmin[Vendor, AllVendor](ctx, "id", "logo_url", "name", "email", "is_active", "address", "city", "state")
}
