package models

import (
	"github.com/greenstem/pos_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list & map if exists
}

// remove both item & list + map
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj Location) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Location](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Location) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllLocation](obj.VendorId); err != nil {
		return err
	}
	if err := utils.RemoveRedisMap[AllLocation](obj.VendorId); err != nil {
		return err
	}
	return nil
}

func (obj Product) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Product](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Product) RemoveAllRedis() error {
	if err := utils.RemoveRedisMap[AllProduct](obj.VendorId); err != nil {
		return err
	}
	return nil
}

func (obj ProductCategory) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[ProductCategory](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj ProductCategory) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllProductCategory](obj.VendorId); err != nil {
		return err
	}
	if err := utils.RemoveRedisMap[AllProductCategory](obj.VendorId); err != nil {
		return err
	}
	return nil
}

func (obj Reason) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Reason](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Reason) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllReason](obj.VendorId); err != nil {
		return err
	}
	if err := utils.RemoveRedisMap[AllReason](obj.VendorId); err != nil {
		return err
	}
	return nil
}

func (obj Supplier) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Supplier](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Supplier) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllSupplier](obj.VendorId); err != nil {
		return err
	}
	if err := utils.RemoveRedisMap[AllSupplier](obj.VendorId); err != nil {
		return err
	}
	return nil
}

// User instance removal lives in user.go, keyed by username.
func (obj User) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllUser](obj.VendorId); err != nil {
		return err
	}
	if err := utils.RemoveRedisMap[AllUser](obj.VendorId); err != nil {
		return err
	}
	return nil
}

func (obj PurchaseOrder) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[PurchaseOrder](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj PurchaseOrder) RemoveAllRedis() error {
	return nil
}
