package models

import (
	"context"
	"slices"

	"gorm.io/gorm"
)

type HasIsDeleted struct {
	IsDeletedItem bool `json:"is_deleted_item"`
}

func (i HasIsDeleted) IsDeleted() bool {
	return i.IsDeletedItem
}

// Image
type Upserter interface {
	Store(tx *gorm.DB, ctx context.Context) error
	Delete(tx *gorm.DB, ctx context.Context) error
	Update(tx *gorm.DB, ctx context.Context, fillable map[string]interface{}) error
}

// NewImage
type Upsertable[ReturnType any] interface {
	Fillable() (map[string]interface{}, error)                          // for updates
	MapInput(referenceType string, referenceId int) (ReturnType, error) // for create
	IsDeleted() bool
	Identifier
}

// upsert input array, insert new, update existing, delete if flagged as isDeletedItem
func UpsertPolymorphicAssociation[ReturnType Upserter, InputType Upsertable[ReturnType]](
	ctx context.Context, tx *gorm.DB, inputSlice []InputType, referenceType string, referenceId int) ([]ReturnType, error) {

	var existingIds []int
	var temp ReturnType
	if err := tx.WithContext(ctx).
		Model(&temp).Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Select("id").Scan(&existingIds).Error; err != nil {
		return nil, err
	}

	var associations []ReturnType
	for _, input := range inputSlice {
		var item ReturnType
		id := input.GetId()

		// if item exists
		if slices.Contains(existingIds, id) {

			// fetch before update/delete
			if err := tx.WithContext(ctx).First(&item, id).Error; err != nil {
				return nil, err
			}

			// delete if input's isDeletedItem field is true
			if input.IsDeleted() {
				if err := item.Delete(tx, ctx); err != nil {
					return nil, err
				}
				// continue next iteration, skipping the appending
				continue

			} else {
				// update otherwise
				update, err := input.Fillable()
				if err != nil {
					return nil, err
				}

				if err := item.Update(tx, ctx, update); err != nil {
					return nil, err
				}
			}
		} else { // insert if id does not exist

			// don't insert if input is to be deleted
			if input.IsDeleted() {
				continue
			}
			// insert new item
			item, err := input.MapInput(referenceType, referenceId)
			if err != nil {
				return nil, err
			}
			if err := item.Store(tx, ctx); err != nil {
				return nil, err
			}
		}
		// append to slice after upserting item
		associations = append(associations, item)
	}

	return associations, nil
}
