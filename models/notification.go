package models

import "time"

type Notification struct {
	NotificationID string                 `json:"notificationId" bson:"notificationId"`
	UserID         string                 `json:"userId" bson:"userId"`
	Type           string                 `json:"type" bson:"type"`
	Title          string                 `json:"title" bson:"title"`
	Message        string                 `json:"message" bson:"message"`
	Data           map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	Read           bool                   `json:"read" bson:"read"`
	CreatedAt      time.Time              `json:"createdAt" bson:"createdAt"`
}
