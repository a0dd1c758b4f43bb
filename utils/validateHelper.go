package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/greenstem/pos_backend/config"
)

// check if id exists, using ctx's vendor_id in WHERE, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, vendorId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, vendorId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

type ValidationRule[ID comparable] struct {
	Model   interface{}
	Ids     []ID
	Message string
	Filter  Filter
}

type Filter struct {
	Cond   string
	Values []interface{}
}

func MassValidateResourceIds[ID comparable](ctx context.Context, rules []ValidationRule[ID]) error {
	db := config.GetDB()
	var count int64
	for _, rule := range rules {
		if len(rule.Ids) <= 0 {
			continue
		}

		unqIds := UniqueSlice(rule.Ids)

		err := db.WithContext(ctx).Model(&rule.Model).
			Where("id IN ?", unqIds).
			Where(rule.Filter.Cond, rule.Filter.Values...).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count != int64(len(unqIds)) {
			return errors.New(rule.Message)
		}
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, vendorId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, vendorId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, vendorId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE vendor_id = ? AND $condition
// vendor_id can be blank for admin user
func ResourceCountWhere[T any](ctx context.Context, vendorId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if vendorId != "" {
		dbCtx.Where("vendor_id = ?", vendorId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
