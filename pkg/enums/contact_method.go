package enums

import "fmt"

// ContactMethod is the channel a prospect prefers for follow-up.
type ContactMethod string

const (
	ContactMethodEmail    ContactMethod = "email"
	ContactMethodPhone    ContactMethod = "phone"
	ContactMethodWhatsApp ContactMethod = "whatsapp"
)

var validContactMethods = []ContactMethod{
	ContactMethodEmail,
	ContactMethodPhone,
	ContactMethodWhatsApp,
}

// IsValid reports whether the method is recognized.
func (m ContactMethod) IsValid() bool {
	for _, candidate := range validContactMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseContactMethod converts raw input into a ContactMethod.
func ParseContactMethod(value string) (ContactMethod, error) {
	for _, candidate := range validContactMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contact method %q", value)
}
