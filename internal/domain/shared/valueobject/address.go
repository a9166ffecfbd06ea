package valueobject

import (
	"fmt"
	"regexp"
	"strings"
)

var postalCodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Address is a mailing address value object
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// NewAddress trims and validates an address. An all-empty address is valid.
func NewAddress(street, city, state, postalCode, country string) (Address, error) {
	a := Address{
		Street:     strings.TrimSpace(street),
		City:       strings.TrimSpace(city),
		State:      strings.ToUpper(strings.TrimSpace(state)),
		PostalCode: strings.TrimSpace(postalCode),
		Country:    strings.ToUpper(strings.TrimSpace(country)),
	}
	if a.IsEmpty() {
		return a, nil
	}
	if a.Country == "" {
		a.Country = "US"
	}
	if len(a.Street) > 200 {
		return Address{}, fmt.Errorf("street cannot exceed 200 characters")
	}
	if len(a.City) > 100 {
		return Address{}, fmt.Errorf("city cannot exceed 100 characters")
	}
	if a.Country == "US" {
		if a.State != "" && len(a.State) != 2 {
			return Address{}, fmt.Errorf("state must be a two-letter code")
		}
		if a.PostalCode != "" && !postalCodePattern.MatchString(a.PostalCode) {
			return Address{}, fmt.Errorf("invalid ZIP code: %s", a.PostalCode)
		}
	}
	return a, nil
}

// IsEmpty reports whether no address component is set
func (a Address) IsEmpty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.PostalCode == ""
}

// String formats the address on one line
func (a Address) String() string {
	if a.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, 3)
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	cityLine := strings.TrimSpace(strings.Join([]string{a.City, strings.TrimSpace(a.State + " " + a.PostalCode)}, ", "))
	cityLine = strings.Trim(cityLine, ", ")
	if cityLine != "" {
		parts = append(parts, cityLine)
	}
	if a.Country != "" && a.Country != "US" {
		parts = append(parts, a.Country)
	}
	return strings.Join(parts, ", ")
}
