package models

func (h History) GetVendorId() string {
	return h.VendorId
}

func (i IdempotencyKey) GetVendorId() string {
	return i.VendorId
}

func (l Location) GetVendorId() string {
	return l.VendorId
}

func (p Product) GetVendorId() string {
	return p.VendorId
}

func (p ProductCategory) GetVendorId() string {
	return p.VendorId
}

func (a PubSubMessageRecord) GetVendorId() string {
	return a.VendorId
}

func (po PurchaseOrder) GetVendorId() string {
	return po.VendorId
}

func (r Reason) GetVendorId() string {
	return r.VendorId
}

func (a StockAdjustment) GetVendorId() string {
	return a.VendorId
}

func (s StockLevel) GetVendorId() string {
	return s.VendorId
}

func (s StockLevelDailyBalance) GetVendorId() string {
	return s.VendorId
}

func (s Supplier) GetVendorId() string {
	return s.VendorId
}

func (u User) GetVendorId() string {
	return u.VendorId
}
