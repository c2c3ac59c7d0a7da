package models

import "time"

// Crop is a seller's listing. QuantityAvailable is the authoritative stock.
type Crop struct {
	CropID            string     `json:"cropId" bson:"cropId"`
	CropName          string     `json:"cropName" bson:"cropName"`
	Variety           string     `json:"variety,omitempty" bson:"variety,omitempty"`
	Grade             string     `json:"grade,omitempty" bson:"grade,omitempty"`
	PricePerUnit      float64    `json:"pricePerUnit" bson:"pricePerUnit"`
	Unit              string     `json:"unit" bson:"unit"`
	QuantityAvailable int        `json:"quantityAvailable" bson:"quantityAvailable"`
	Location          string     `json:"location,omitempty" bson:"location,omitempty"`
	SellerID          string     `json:"sellerId" bson:"sellerId"`
	ArrivalDate       *time.Time `json:"arrivalDate,omitempty" bson:"arrivalDate,omitempty"`
	ImageURL          string     `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	ThumbURL          string     `json:"thumbUrl,omitempty" bson:"thumbUrl,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

type CropFilter struct {
	Search   string
	Location string
	Grade    string
	SellerID string
	InStock  bool
	Skip     int64
	Limit    int64
}
