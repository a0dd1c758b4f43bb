package utils

import (
	"context"

	"github.com/greenstem/pos_backend/config"
)

/* DB fetching */

// fetch model from db
// (ctx's vendor_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, vendorId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}
