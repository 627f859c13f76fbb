package intake

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

// DateLayout is the wire format for preferredStartDate.
const DateLayout = "2006-01-02"

var (
	contactEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern        = regexp.MustCompile(`^[0-9]{10}$`)
)

// DraftInput is the raw booking intake form.
type DraftInput struct {
	WarehouseID            string `json:"warehouseId" validate:"required,uuid"`
	FullName               string `json:"fullName" validate:"required,max=200"`
	Email                  string `json:"email" validate:"required,contact_email,max=254"`
	Phone                  string `json:"phone" validate:"required,phone10"`
	CompanyName            string `json:"companyName" validate:"required,max=200"`
	PreferredContactMethod string `json:"preferredContactMethod" validate:"required,oneof=email phone whatsapp"`
	PreferredContactTime   string `json:"preferredContactTime" validate:"max=120"`
	PreferredStartDate     string `json:"preferredStartDate" validate:"required,not_past"`
	Message                string `json:"message" validate:"max=2000"`
}

// DraftFields are the normalized values of a valid DraftInput.
type DraftFields struct {
	WarehouseID            uuid.UUID
	FullName               string
	Email                  string
	Phone                  string
	CompanyName            string
	PreferredContactMethod enums.ContactMethod
	PreferredContactTime   string
	PreferredStartDate     time.Time
	Message                string
}

// ContactInput is the public direct contact form. Warehouse and contact preference are optional.
type ContactInput struct {
	WarehouseID            string `json:"warehouseId" validate:"omitempty,uuid"`
	FullName               string `json:"fullName" validate:"required,max=200"`
	Email                  string `json:"email" validate:"required,contact_email,max=254"`
	Phone                  string `json:"phone" validate:"required,phone10"`
	CompanyName            string `json:"companyName" validate:"required,max=200"`
	PreferredContactMethod string `json:"preferredContactMethod" validate:"omitempty,oneof=email phone whatsapp"`
	PreferredContactTime   string `json:"preferredContactTime" validate:"max=120"`
	Message                string `json:"message" validate:"max=2000"`
}

// ContactFields are the normalized values of a valid ContactInput.
type ContactFields struct {
	WarehouseID            *uuid.UUID
	FullName               string
	Email                  string
	Phone                  string
	CompanyName            string
	PreferredContactMethod *enums.ContactMethod
	PreferredContactTime   string
	Message                string
}

// Validator checks intake forms. It has no side effects; the clock decides what "today" is.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator builds a Validator. A nil clock uses time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{now: now}
	v.validate = v.newValidate()
	return v
}

func (v *Validator) newValidate() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = validate.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
		return contactEmailPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("not_past", func(fl validator.FieldLevel) bool {
		date, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return !date.Before(today(v.now()))
	})
	return validate
}

// Validate checks every field of a booking intake and reports all violations at once.
func (v *Validator) Validate(input DraftInput) (DraftFields, error) {
	input = normalizeDraft(input)
	if err := v.validate.Struct(input); err != nil {
		return DraftFields{}, validationError(err)
	}

	startDate, _ := time.Parse(DateLayout, input.PreferredStartDate)
	return DraftFields{
		WarehouseID:            uuid.MustParse(input.WarehouseID),
		FullName:               input.FullName,
		Email:                  input.Email,
		Phone:                  input.Phone,
		CompanyName:            input.CompanyName,
		PreferredContactMethod: enums.ContactMethod(input.PreferredContactMethod),
		PreferredContactTime:   input.PreferredContactTime,
		PreferredStartDate:     startDate,
		Message:                input.Message,
	}, nil
}

// ValidateContact applies the same field rules to the direct contact form.
func (v *Validator) ValidateContact(input ContactInput) (ContactFields, error) {
	input = normalizeContact(input)
	if err := v.validate.Struct(input); err != nil {
		return ContactFields{}, validationError(err)
	}

	fields := ContactFields{
		FullName:             input.FullName,
		Email:                input.Email,
		Phone:                input.Phone,
		CompanyName:          input.CompanyName,
		PreferredContactTime: input.PreferredContactTime,
		Message:              input.Message,
	}
	if input.WarehouseID != "" {
		id := uuid.MustParse(input.WarehouseID)
		fields.WarehouseID = &id
	}
	if input.PreferredContactMethod != "" {
		method := enums.ContactMethod(input.PreferredContactMethod)
		fields.PreferredContactMethod = &method
	}
	return fields, nil
}

func normalizeDraft(in DraftInput) DraftInput {
	in.WarehouseID = strings.TrimSpace(in.WarehouseID)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.PreferredContactMethod = strings.ToLower(strings.TrimSpace(in.PreferredContactMethod))
	in.PreferredContactTime = strings.TrimSpace(in.PreferredContactTime)
	in.PreferredStartDate = strings.TrimSpace(in.PreferredStartDate)
	in.Message = strings.TrimSpace(in.Message)
	return in
}

func normalizeContact(in ContactInput) ContactInput {
	in.WarehouseID = strings.TrimSpace(in.WarehouseID)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.PreferredContactMethod = strings.ToLower(strings.TrimSpace(in.PreferredContactMethod))
	in.PreferredContactTime = strings.TrimSpace(in.PreferredContactTime)
	in.Message = strings.TrimSpace(in.Message)
	return in
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fieldMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, summarize(details)).WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "uuid":
		return "must be a valid id"
	case "contact_email":
		return "must be a valid email address"
	case "phone10":
		return "must be exactly 10 digits"
	case "not_past":
		return "must be a date (YYYY-MM-DD) no earlier than today"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}

func summarize(details map[string]string) string {
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}
