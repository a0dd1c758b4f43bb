package models

type Identifier interface {
	GetId() int
}

func (l Location) GetId() int {
	return l.ID
}

func (p Product) GetId() int {
	return p.ID
}

func (p ProductCategory) GetId() int {
	return p.ID
}

func (r Reason) GetId() int {
	return r.ID
}

func (s Supplier) GetId() int {
	return s.ID
}

func (u User) GetId() int {
	return u.ID
}

func (po PurchaseOrder) GetId() int {
	return po.ID
}

func (i PurchaseOrderItem) GetId() int {
	return i.ID
}

func (a StockAdjustment) GetId() int {
	return a.ID
}

func (s StockLevel) GetId() int {
	return s.ID
}

func (r PubSubMessageRecord) GetId() int {
	return r.ID
}
