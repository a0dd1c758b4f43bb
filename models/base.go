package models

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

// PublishInventoryEvent implements the transactional outbox: it writes the
// message record inside the caller's DB transaction but does NOT publish to
// Pub/Sub. Publishing is performed asynchronously by the outbox dispatcher
// after commit.
func PublishInventoryEvent(ctx context.Context, db *gorm.DB, vendorId string, transactionDateTime time.Time, refId int, refType EventReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if msgAction == PubSubMessageActionCreate || msgAction == PubSubMessageActionUpdate {
		objInByte, err = ToJSONWithoutField(obj, "Images")
		if err != nil {
			return err
		}
	}
	if msgAction == PubSubMessageActionUpdate || msgAction == PubSubMessageActionDelete {
		oldObjInByte, err = ToJSONWithoutField(oldObj, "Images")
		if err != nil {
			return err
		}
	}

	record := PubSubMessageRecord{
		VendorId:            vendorId,
		TransactionDateTime: transactionDateTime,
		ReferenceId:         refId,
		ReferenceType:       refType,
		Action:              msgAction,
		NewObj:              objInByte,
		OldObj:              oldObjInByte,
		IsProcessed:         false,
		PublishStatus:       OutboxPublishStatusPending,
		CorrelationId:       correlationIdFromContextOrNew(ctx),
	}
	err = db.Create(&record).Error
	if err != nil {
		return err
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ToJSONWithoutField marshals obj with the named field zeroed out. Event
// payloads strip image slices this way: they can be large and downstream
// processors never read them.
func ToJSONWithoutField(obj interface{}, fieldName string) ([]byte, error) {
	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Interface {
		val = val.Elem()
	}
	if val.Kind() != reflect.Ptr {
		valPtr := reflect.New(val.Type())
		valPtr.Elem().Set(val)
		val = valPtr
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a struct, got %v", val.Kind())
	}

	field := val.FieldByName(fieldName)
	if !field.IsValid() {
		return json.Marshal(val.Interface())
	}

	// zero the field for the duration of the marshal, then put it back
	originalValue := reflect.New(field.Type()).Elem()
	originalValue.Set(field)
	field.Set(reflect.Zero(field.Type()))
	jsonData, err := json.Marshal(val.Interface())
	field.Set(originalValue)
	if err != nil {
		return nil, err
	}
	return jsonData, nil
}
