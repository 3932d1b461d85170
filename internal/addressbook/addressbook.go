package addressbook

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalid = errors.New("invalid address")
	ErrUnknown = errors.New("unknown address")
)

var pincodeRe = regexp.MustCompile(`^[0-9]{6}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodeRe.MatchString(fl.Field().String())
	})
	return v
}

type Address struct {
	Label      string `json:"label"`
	Name       string `json:"name"        validate:"required"`
	Phone      string `json:"phone"       validate:"required"`
	Street     string `json:"street"      validate:"required"`
	City       string `json:"city"        validate:"required"`
	State      string `json:"state"       validate:"required"`
	PostalCode string `json:"postal_code" validate:"required,pincode"`
	Country    string `json:"country"     validate:"required"`
}

func (a Address) normalized() Address {
	return Address{
		Label:      strings.TrimSpace(a.Label),
		Name:       strings.TrimSpace(a.Name),
		Phone:      strings.TrimSpace(a.Phone),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// Validate trims the address and checks that it is ready for checkout.
// Errors wrap ErrInvalid and name each offending field.
func Validate(a Address) (Address, error) {
	a = a.normalized()
	if err := validate.Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return a, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if fe.Tag() == "pincode" {
				fields = append(fields, "postal_code must be 6 digits")
				continue
			}
			fields = append(fields, toSnake(fe.Field())+" is required")
		}
		return a, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
	}
	return a, nil
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Entry struct {
	ID uuid.UUID `json:"id"`
	Address
}

// Book is a user's set of shipping addresses with at most one selected.
// The first address added to an empty book is selected.
type Book struct {
	entries  []Entry
	selected uuid.UUID
}

func New(entries []Entry, selected uuid.UUID) *Book {
	b := &Book{entries: append([]Entry(nil), entries...)}
	if b.index(selected) >= 0 {
		b.selected = selected
	}
	return b
}

func (b *Book) index(id uuid.UUID) int {
	if id == uuid.Nil {
		return -1
	}
	for i := range b.entries {
		if b.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Book) Add(a Address) (Entry, error) {
	a, err := Validate(a)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{ID: uuid.New(), Address: a}
	b.entries = append(b.entries, e)
	if b.selected == uuid.Nil {
		b.selected = e.ID
	}
	return e, nil
}

func (b *Book) Edit(id uuid.UUID, a Address) (Entry, error) {
	i := b.index(id)
	if i < 0 {
		return Entry{}, ErrUnknown
	}
	a, err := Validate(a)
	if err != nil {
		return Entry{}, err
	}
	b.entries[i].Address = a
	return b.entries[i], nil
}

// Delete removes the address; deleting the selected one leaves nothing selected.
func (b *Book) Delete(id uuid.UUID) error {
	i := b.index(id)
	if i < 0 {
		return ErrUnknown
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	if b.selected == id {
		b.selected = uuid.Nil
	}
	return nil
}

func (b *Book) Select(id uuid.UUID) error {
	if b.index(id) < 0 {
		return ErrUnknown
	}
	b.selected = id
	return nil
}

func (b *Book) Selected() (Entry, bool) {
	i := b.index(b.selected)
	if i < 0 {
		return Entry{}, false
	}
	return b.entries[i], true
}

func (b *Book) Get(id uuid.UUID) (Entry, bool) {
	i := b.index(id)
	if i < 0 {
		return Entry{}, false
	}
	return b.entries[i], true
}

func (b *Book) List() []Entry {
	return append([]Entry(nil), b.entries...)
}

func (b *Book) Len() int {
	return len(b.entries)
}
