package domain

import "time"

// UserProfile stores a customer's saved delivery details keyed by their
// auth UID. Orders reference profiles but survive their deletion.
type UserProfile struct {
	ID                    string
	Username              string
	Email                 string
	DefaultPhoneNumber    string
	DefaultStreetAddress1 string
	DefaultStreetAddress2 string
	DefaultTownOrCity     string
	DefaultCounty         string
	DefaultPostcode       string
	DefaultLocality       string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DefaultAddress assembles an Address from the saved defaults.
func (p UserProfile) DefaultAddress() Address {
	return Address{
		Email:          p.Email,
		PhoneNumber:    p.DefaultPhoneNumber,
		StreetAddress1: p.DefaultStreetAddress1,
		StreetAddress2: p.DefaultStreetAddress2,
		TownOrCity:     p.DefaultTownOrCity,
		County:         p.DefaultCounty,
		Postcode:       p.DefaultPostcode,
		Locality:       p.DefaultLocality,
	}
}

// Feedback is a message submitted through the feedback form.
type Feedback struct {
	ID        string
	Name      string
	Email     string
	Message   string
	CreatedAt time.Time
}
