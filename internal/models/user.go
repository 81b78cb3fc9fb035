package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	UserTypeUser     = "user"
	UserTypeMerchant = "merchant"
)

type User struct {
	ID        int64     `json:"user_id" example:"1"`
	Username  string    `json:"username" example:"alice"`
	Email     string    `json:"email" example:"alice@example.com"`
	Name      string    `json:"name" example:"Alice Doe"`
	Address   string    `json:"address" example:"1 Main St"`
	UserType  string    `json:"user_type" example:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is what /users/me returns: the user plus their account state.
type Profile struct {
	User
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	TestMode  bool            `json:"test_mode"`
}

// DirectoryEntry is the public view of a user returned by search.
type DirectoryEntry struct {
	ID          int64  `json:"id" example:"2"`
	Username    string `json:"username" example:"bob"`
	AccountType string `json:"account_type" example:"user"`
}
