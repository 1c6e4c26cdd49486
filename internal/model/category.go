// Package model defines the core domain types for the paisaflow engine.
package model

import "time"

// TransactionType is the top-level semantic label every enriched transaction
// receives. Unlike categories, the type is never left unresolved.
type TransactionType string

// Transaction type constants.
const (
	TypeIncome     TransactionType = "income"
	TypeNeeds      TransactionType = "needs"
	TypeWants      TransactionType = "wants"
	TypeAssets     TransactionType = "assets"
	TypeDebt       TransactionType = "debt"
	TypeProtection TransactionType = "protection"
	TypeTransfer   TransactionType = "transfer"
	TypeFees       TransactionType = "fees"
	TypeTax        TransactionType = "tax"
	TypeCharity    TransactionType = "charity"
	TypeBusiness   TransactionType = "business"
)

// ValidTransactionType reports whether t is one of the known types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeNeeds, TypeWants, TypeAssets, TypeDebt,
		TypeProtection, TypeTransfer, TypeFees, TypeTax, TypeCharity,
		TypeBusiness:
		return true
	}
	return false
}

// DefaultTypeForDirection returns the transaction type used when no rule or
// merchant resolved one.
func DefaultTypeForDirection(dir TransactionDirection) TransactionType {
	if dir == DirectionCredit {
		return TypeIncome
	}
	return TypeWants
}

// Category is a stable top-level taxonomy entry. Codes are referenced by
// rules and merchants and must never be recycled.
type Category struct {
	CreatedAt   time.Time
	Code        string
	Name        string
	DefaultType TransactionType
	IsActive    bool
}

// Subcategory is a second-level taxonomy entry scoped to one category.
type Subcategory struct {
	CreatedAt    time.Time
	Code         string
	CategoryCode string
	Name         string
	IsActive     bool
}

// UncategorizedCode is the taxonomy contract's stand-in for an unknown or
// unresolved category; consumers must treat unknown codes as this, never as
// a fatal condition.
const UncategorizedCode = "uncategorized"
