package utils

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/greenstem/pos_backend/config"
)

var mutex sync.Mutex

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// get type name of struct
func GetType(i interface{}) string {
	return reflect.TypeOf(i).Name()
}

/* Redis */

// check if model has expiration date
func typeHasExpiration(typeName string) bool {
	expirableTypes := map[string]bool{
		"Product":         true,
		"ProductCategory": true,
		"Location":        true,
		"Supplier":        true,
		"Reason":          true,
	}
	return expirableTypes[typeName]
}

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id int) error {
	typeName := GetTypeName[T]()
	key := typeName + ":" + fmt.Sprint(id)

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// store object
func StoreRedisList[T any](obj any, vendorId string) error {
	var key string
	typeName := GetTypeName[T]()
	if vendorId == "" {
		key = GetTypeName[T]() + "List"
	} else {
		key = GetTypeName[T]() + "List:" + vendorId
	}

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// retrieve a list.
// vendorId can be empty
func RetrieveRedisList[T any](vendorId string) ([]*T, error) {
	var key string
	if vendorId == "" {
		key = GetTypeName[T]() + "List"
	} else {
		key = GetTypeName[T]() + "List:" + vendorId
	}

	var result []*T
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// clear list, TypeList:$vendor_id
func RemoveRedisList[T any](vendorId string) error {
	var key string = GetTypeName[T]() + "List:" + vendorId
	return config.RemoveRedisKey(key)
}

// clear map, TypeMap:$vendor_id
func RemoveRedisMap[T any](vendorId string) error {
	var key string = GetTypeName[T]() + "Map:" + vendorId
	return config.RemoveRedisKey(key)
}

// clear admin-scoped list & map, TypeList / TypeMap
func ClearRedisAdmin[T any]() error {
	if err := config.RemoveRedisKey(GetTypeName[T]() + "List"); err != nil {
		return err
	}
	return config.RemoveRedisKey(GetTypeName[T]() + "Map")
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.RemoveRedisKey(key)
}

// GetDailySequence hands out the next per-vendor, per-day sequence number for
// T (which must carry sequence_no and sequence_date columns). The counter
// lives in redis, seeded from the db max when a day's counter is fresh, and
// re-checked against the db so a flushed redis never reissues a number.
func GetDailySequence[T any](ctx context.Context, vendorId string, dateKey string) (int64, error) {
	var model T
	mutex.Lock()
	defer mutex.Unlock()
	cacheKey := vendorId + "-" + strings.ToLower(GetTypeName[T]()) + "_seq:" + dateKey
	var seqNo int64
	var err error
	db := config.GetDB()

	for {
		seqNo, err = config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// if not found in redis, get from db
		if seqNo <= 1 {
			// get max seq no from db
			var dbSeq *int64
			if err := db.WithContext(ctx).Model(&model).Select("max(sequence_no)").
				Where("vendor_id = ? AND sequence_date = ?", vendorId, dateKey).
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			// in case db has no records for the day
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			// set redis
			seqNo++
			if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
				return 0, err
			}
			_ = config.ExpireRedisKey(ctx, cacheKey, 48*time.Hour)
		}
		// check if sequence number exists in db
		count, err := ResourceCountWhere[T](ctx, vendorId, "sequence_no = ? AND sequence_date = ?", seqNo, dateKey)
		if err != nil {
			return 0, err
		}
		if count == 0 {
			break
		}
	}
	return seqNo, nil
}
