package admin

import "time"

// GrantCreditsRequest is the body for POST /admin/users/{id}/credits
type GrantCreditsRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

// GrantCreditsResponse returns the new balance after a grant
type GrantCreditsResponse struct {
	UserID  string `json:"user_id"`
	Granted int64  `json:"granted"`
	Credits int64  `json:"credits"`
}

// UserRecord is the admin view of a user
type UserRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}
