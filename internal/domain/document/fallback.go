package document

import (
	"strings"

	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

// Chain is an ordered list of accessors for one displayed field. The first
// accessor returning non-blank text wins, and NotAvailable is shown when none do.
type Chain[T any] struct {
	Field     string
	Accessors []func(T) string
}

// NewChain builds a chain for field.
func NewChain[T any](field string, accessors ...func(T) string) Chain[T] {
	return Chain[T]{Field: field, Accessors: accessors}
}

// Resolve evaluates the accessors in order.
func (c Chain[T]) Resolve(v T) string {
	for _, get := range c.Accessors {
		if s := strings.TrimSpace(get(v)); s != "" {
			return s
		}
	}
	return valueobject.NotAvailable
}

func fromAccount(get func(*BusinessAccount) string) func(*Document) string {
	return func(d *Document) string {
		acc := d.BusinessAccount()
		if acc == nil {
			return ""
		}
		return get(acc)
	}
}

// Party field chains: the denormalized document field, then the related business account.
var (
	BusinessNameChain = NewChain("businessName",
		func(d *Document) string { return d.BusinessName },
		fromAccount(func(a *BusinessAccount) string { return a.BusinessName }),
	)
	ContactNameChain = NewChain("contactName",
		func(d *Document) string { return d.ContactName },
		fromAccount(func(a *BusinessAccount) string { return a.ContactName }),
	)
	EmailChain = NewChain("email",
		func(d *Document) string { return d.Email },
		fromAccount(func(a *BusinessAccount) string { return a.Email }),
	)
	MobileNumberChain = NewChain("mobileNumber",
		func(d *Document) string { return d.MobileNumber },
		fromAccount(func(a *BusinessAccount) string { return a.MobileNumber }),
	)
	GSTINChain = NewChain("gstin",
		func(d *Document) string { return d.GSTIN },
		fromAccount(func(a *BusinessAccount) string { return a.GSTIN }),
	)
	AddressChain = NewChain("address",
		func(d *Document) string { return d.Address },
		fromAccount(func(a *BusinessAccount) string { return a.Address }),
	)
)

// Line item chains.
var (
	ItemNameChain = NewChain("productName",
		func(i LineItem) string { return i.ProductName },
	)
	ItemDescriptionChain = NewChain("description",
		func(i LineItem) string { return i.Description },
		LineItem.SpecificationText,
	)
)

// Party is the resolved party block of a document.
type Party struct {
	BusinessName string
	ContactName  string
	Email        string
	MobileNumber string
	GSTIN        string
	Address      string
}

// Party resolves every party field through its chain.
func (d *Document) Party() Party {
	return Party{
		BusinessName: BusinessNameChain.Resolve(d),
		ContactName:  ContactNameChain.Resolve(d),
		Email:        EmailChain.Resolve(d),
		MobileNumber: MobileNumberChain.Resolve(d),
		GSTIN:        GSTINChain.Resolve(d),
		Address:      AddressChain.Resolve(d),
	}
}
