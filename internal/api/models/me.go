package models

// Me represents the current user's account summary.
type Me struct {
	UserID    string    `json:"userId"`
	Email     *string   `json:"email,omitempty"`
	Locale    string    `json:"locale"`
	CreatedAt Timestamp `json:"createdAt"`
}
