package model

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
	ProductDraft    ProductStatus = "draft"
)

// Product is the catalog record read during checkout.
type Product struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	SKU      string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Price    float64            `bson:"price" json:"price"`
	Discount float64            `bson:"discount" json:"discount"`
	Stock    int                `bson:"stock" json:"stock"`
	Status   ProductStatus      `bson:"status" json:"status"`
	Images   []string           `bson:"images,omitempty" json:"images,omitempty"`
	Seller   string             `bson:"seller,omitempty" json:"seller,omitempty"`
	Variants []Variant          `bson:"variants,omitempty" json:"variants,omitempty"`
}

// VariantSpec selects a variant either by SKU or by its attributes.
type VariantSpec struct {
	SKU      string `bson:"sku,omitempty" json:"sku,omitempty"`
	Size     string `bson:"size,omitempty" json:"size,omitempty"`
	Color    string `bson:"color,omitempty" json:"color,omitempty"`
	Material string `bson:"material,omitempty" json:"material,omitempty"`
}

func (v VariantSpec) IsZero() bool {
	return v.SKU == "" && v.Size == "" && v.Color == "" && v.Material == ""
}

type Variant struct {
	VariantSpec `bson:",inline"`
	Price       float64 `bson:"price,omitempty" json:"price,omitempty"`
	Stock       int     `bson:"stock" json:"stock"`
}

func (p *Product) Active() bool {
	return p.Status == ProductActive
}

// Image returns the first product image, if any.
func (p *Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// FindVariant resolves spec against the product variants. SKU wins when set;
// otherwise every non-empty attribute must match, case-insensitively.
func (p *Product) FindVariant(spec VariantSpec) (*Variant, bool) {
	if spec.IsZero() {
		return nil, false
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		if spec.SKU != "" {
			if v.SKU == spec.SKU {
				return v, true
			}
			continue
		}
		if attrMatch(spec.Size, v.Size) && attrMatch(spec.Color, v.Color) && attrMatch(spec.Material, v.Material) {
			return v, true
		}
	}
	return nil, false
}

func attrMatch(want, have string) bool {
	return want == "" || strings.EqualFold(want, have)
}
