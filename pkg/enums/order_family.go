package enums

import "fmt"

// OrderFamily distinguishes the two order lifecycles on the platform.
type OrderFamily string

const (
	// OrderFamilyRetail is a retailer buying from a wholesaler.
	OrderFamilyRetail OrderFamily = "retail"
	// OrderFamilySupply is a wholesaler buying from a supplier.
	OrderFamilySupply OrderFamily = "supply"
)

var validOrderFamilies = []OrderFamily{
	OrderFamilyRetail,
	OrderFamilySupply,
}

// String implements fmt.Stringer.
func (o OrderFamily) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderFamily.
func (o OrderFamily) IsValid() bool {
	for _, candidate := range validOrderFamilies {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderFamily converts raw input into an OrderFamily.
func ParseOrderFamily(value string) (OrderFamily, error) {
	for _, candidate := range validOrderFamilies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order family %q", value)
}
