package models

import (
	"context"
	"errors"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
)

type Resource interface {
	GetVendorId() string
}

// first find in redis, then in db, using ctx's vendor_id in WHERE, cache result
// (may return RecordNotFound error)
func GetResource[T Resource](ctx context.Context, id int, associations ...string) (*T, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	// find in redis
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	// if not found in redis
	if result == nil {
		// fetch from db
		result, err = utils.FetchModel[T](ctx, vendorId, id, associations...)
		if err != nil {
			return nil, err
		}

		// store in redis
		if err := utils.StoreRedis[T](result, id); err != nil {
			return nil, err
		}
	} else {
		// if found in redis
		// check if vendor ids match
		if (*result).GetVendorId() != vendorId {
			return nil, errors.New("cannot access resource owned by other vendor")
		}
	}

	return result, nil
}

// list all resources, redis or db, cache result
func ListAllResource[ModelT any, AllModelT any](ctx context.Context, orders ...string) ([]*AllModelT, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	// first try redis cache
	results, err := utils.RetrieveRedisList[AllModelT](vendorId)
	if err != nil {
		return nil, err
	}
	// if not exists in redis
	if results == nil {
		// fetch from db
		db := config.GetDB()
		var model ModelT
		dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
		for _, order := range orders {
			dbCtx.Order(order)
		}
		// db query
		if err = dbCtx.Model(&model).Find(&results).Error; err != nil {
			return nil, err
		}

		// caching the result
		if err := utils.StoreRedisList[AllModelT](results, vendorId); err != nil {
			return nil, err
		}
	}

	return results, nil
}

func ToggleActiveModel[T RedisCleaner](ctx context.Context, vendorId string, id int, isActive bool) (*T, error) {

	var result *T
	var err error
	db := config.GetDB()

	// fetch model before updating
	if vendorId == "" {
		err = db.WithContext(ctx).First(&result, id).Error
	} else {
		err = db.WithContext(ctx).Where("vendor_id = ?", vendorId).First(&result, id).Error
	}
	if err != nil {
		return nil, err
	}

	// update db
	tx := db.Begin()
	Tx := tx.WithContext(ctx).Model(&result).
		UpdateColumn("IsActive", isActive)
	if Tx.Error != nil {
		tx.Rollback()
		return nil, err
	}

	referenceType := Tx.Statement.Table
	var actionType string
	if isActive {
		actionType = "*ACTIVE*"
	} else {
		actionType = "*INACTIVE*"
	}

	// create history without hook
	if err := createHistory(tx.WithContext(ctx), actionType, id, referenceType, nil, nil, "toggled "+utils.GetTypeName[T]()); err != nil {
		tx.Rollback()
		return nil, err
	}

	// clear cache
	if err := RemoveRedisBoth(*result); err != nil {
		return nil, err
	}

	return result, tx.Commit().Error
}

// list all admin-scoped resources, redis or db, cache result
func ListAllAdmin[ModelT any, AllModelT any](ctx context.Context, fields ...string) ([]*AllModelT, error) {

	// first try redis cache
	results, err := utils.RetrieveRedisList[AllModelT]("")
	if err != nil {
		return nil, err
	}
	// if not exists in redis
	if results == nil {
		// fetch from db
		db := config.GetDB()
		var model ModelT
		dbCtx := db.WithContext(ctx).Model(&model)
		dbCtx.Select(fields)
		// db query
		if err = dbCtx.Scan(&results).Error; err != nil {
			return nil, err
		}

		// caching the result
		if err := utils.StoreRedisList[AllModelT](results, ""); err != nil {
			return nil, err
		}
	}

	return results, nil
}
