package products

import "github.com/shopspring/decimal"

type ProductForm struct {
	Name          string          `json:"name" validate:"required,max=120"`
	Unit          string          `json:"unit" validate:"omitempty,max=16"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	ReorderLevel  decimal.Decimal `json:"reorder_level"`
	OpeningStock  decimal.Decimal `json:"opening_stock"`
}

func (f ProductForm) product() Product {
	return Product{
		Name:          f.Name,
		Unit:          f.Unit,
		PurchasePrice: f.PurchasePrice,
		SalePrice:     f.SalePrice,
		ReorderLevel:  f.ReorderLevel,
	}
}
