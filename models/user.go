package models

import "time"

type Role string

const (
	RoleFarmer       Role = "farmer"
	RoleBuyer        Role = "buyer"
	RoleWorker       Role = "worker"
	RoleTractorOwner Role = "tractor_owner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleWorker, RoleTractorOwner:
		return true
	}
	return false
}

type Address struct {
	Village  string `json:"village,omitempty" bson:"village,omitempty"`
	District string `json:"district,omitempty" bson:"district,omitempty"`
	State    string `json:"state,omitempty" bson:"state,omitempty"`
	Pincode  string `json:"pincode,omitempty" bson:"pincode,omitempty"`
}

type User struct {
	UserID    string    `json:"userId" bson:"userId"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Password  string    `json:"-" bson:"password"`
	Role      Role      `json:"role" bson:"role"`
	Address   Address   `json:"address" bson:"address"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	LastLogin time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
}

// AuthResponse is the body of a successful login or registration.
type AuthResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}
