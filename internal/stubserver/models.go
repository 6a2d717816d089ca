package stubserver

import "strconv"

type Product struct {
	ID             string
	Name           string
	Description    string
	DesignImageURL string
	BasePrice      float64
	IsActive       bool
	Variants       []*Variant
}

func (p *Product) toMap() map[string]interface{} {
	variants := make([]interface{}, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, v.toMap())
	}

	return map[string]interface{}{
		"id":             p.ID,
		"name":           p.Name,
		"description":    p.Description,
		"designImageURL": p.DesignImageURL,
		"basePrice":      p.BasePrice,
		"isActive":       p.IsActive,
		"variants":       variants,
	}
}

type Variant struct {
	ID            string
	ProductID     string
	Size          string
	Color         string
	PriceModifier float64
	SKU           string
	StockQuantity int
}

func (v *Variant) toMap() map[string]interface{} {
	return map[string]interface{}{
		"id":            v.ID,
		"productID":     v.ProductID,
		"size":          v.Size,
		"color":         v.Color,
		"priceModifier": v.PriceModifier,
		"sku":           v.SKU,
		"inventory": map[string]interface{}{
			"variantID":     v.ID,
			"stockQuantity": v.StockQuantity,
		},
	}
}

type User struct {
	ID       uint
	Email    string
	Name     string
	Role     string
	Password string
}

func (u *User) toMap() map[string]interface{} {
	return map[string]interface{}{
		"id":    strconv.FormatUint(uint64(u.ID), 10),
		"email": u.Email,
		"name":  u.Name,
		"role":  u.Role,
	}
}

type productInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	DesignImageURL string   `json:"designImageURL"`
	BasePrice      *float64 `json:"basePrice"`
	IsActive       *bool    `json:"isActive"`
}

type variantInput struct {
	ProductID     string  `json:"productID"`
	Size          string  `json:"size"`
	Color         string  `json:"color"`
	PriceModifier float64 `json:"priceModifier"`
	SKU           string  `json:"sku"`
	StockQuantity int     `json:"stockQuantity"`
}

type registerInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
