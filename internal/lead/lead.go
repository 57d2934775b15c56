package lead

import (
	"context"
	"time"
)

// Submission is the contact form payload.
type Submission struct {
	Name     string   `json:"name" validate:"required,min=2,max=100,singleline"`
	Email    string   `json:"email" validate:"required,email,max=254"`
	Phone    string   `json:"phone" validate:"omitempty,phone"`
	Company  string   `json:"company" validate:"max=200,singleline"`
	Message  string   `json:"message" validate:"required,min=10,max=5000"`
	Products []string `json:"products" validate:"max=50,dive,max=200"`
}

// Lead is a stored enquiry.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Message   string    `json:"message"`
	Products  []string  `json:"products"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists leads.
type Store interface {
	Save(ctx context.Context, l Lead) error
	// List returns a newest-first page and the total count.
	List(ctx context.Context, offset, limit int) ([]Lead, int, error)
}
