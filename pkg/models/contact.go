package models

import (
	"time"
)

// LinkPrecedence marks a contact as the root of its cluster or a member of another's.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// Contact is one observed (email, phone) fact.
type Contact struct {
	ID             int64          `json:"id" db:"id"`
	PhoneNumber    *string        `json:"phoneNumber" db:"phone_number"`
	Email          *string        `json:"email" db:"email"`
	LinkedID       *int64         `json:"linkedId" db:"linked_id"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence" db:"link_precedence"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
	DeletedAt      *time.Time     `json:"deletedAt" db:"deleted_at"`
}

func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// IsDeleted reports whether the contact has been logically removed.
func (c Contact) IsDeleted() bool {
	return c.DeletedAt != nil
}

// EmailValue returns the email or "" when absent.
func (c Contact) EmailValue() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// PhoneValue returns the phone number or "" when absent.
func (c Contact) PhoneValue() string {
	if c.PhoneNumber == nil {
		return ""
	}
	return *c.PhoneNumber
}

// CreatedBefore orders contacts by creation time, then id.
func (c Contact) CreatedBefore(other Contact) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// ContactList is the administrative dump of the contact table.
type ContactList struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
}
