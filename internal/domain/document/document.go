// Package document holds the quotation and invoice model that gets rendered.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/crm/docrender/internal/domain/shared"
	"github.com/crm/docrender/internal/domain/shared/valueobject"
)

// Kind distinguishes quotations from invoices.
type Kind string

const (
	KindQuotation Kind = "quotation"
	KindInvoice   Kind = "invoice"
)

// IsValid checks if the kind is known
func (k Kind) IsValid() bool {
	return k == KindQuotation || k == KindInvoice
}

// String returns the string representation
func (k Kind) String() string {
	return string(k)
}

// ParseKind normalises s into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", shared.NewDomainError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", s))
	}
	return k, nil
}

// AllKinds returns every document kind.
func AllKinds() []Kind {
	return []Kind{KindQuotation, KindInvoice}
}

// BusinessAccount is the related CRM account a document may point at.
type BusinessAccount struct {
	ID           string `json:"_id,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	ContactName  string `json:"contactName,omitempty"`
	Email        string `json:"email,omitempty"`
	MobileNumber string `json:"mobileNumber,omitempty"`
	GSTIN        string `json:"gstin,omitempty"`
	Address      string `json:"address,omitempty"`
}

// BusinessRef is the businessId field. The API sends either the bare id or the
// populated account.
type BusinessRef struct {
	ID      string
	Account *BusinessAccount
}

// Populated reports whether the account details are present.
func (r *BusinessRef) Populated() bool {
	return r != nil && r.Account != nil
}

// MarshalJSON writes the account when populated and the id otherwise.
func (r BusinessRef) MarshalJSON() ([]byte, error) {
	if r.Account != nil {
		return json.Marshal(r.Account)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts an id string, an account object or null.
func (r *BusinessRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = BusinessRef{}
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &r.ID)
	case data[0] == '{':
		var acc BusinessAccount
		if err := json.Unmarshal(data, &acc); err != nil {
			return err
		}
		r.ID = acc.ID
		r.Account = &acc
		return nil
	default:
		return nil
	}
}

// Document is a quotation or an invoice as served by the CRM API.
// Renderers treat it as read only.
type Document struct {
	Kind            Kind         `json:"kind,omitempty"`
	ID              string       `json:"_id,omitempty"`
	QuotationNumber string       `json:"quotationNumber,omitempty"`
	InvoiceNumber   string       `json:"invoiceNumber,omitempty"`
	Date            Date         `json:"date"`
	ValidUntil      Date         `json:"validUntil"`
	DueDate         Date         `json:"dueDate"`
	BusinessName    string       `json:"businessName,omitempty"`
	ContactName     string       `json:"contactName,omitempty"`
	Email           string       `json:"email,omitempty"`
	MobileNumber    string       `json:"mobileNumber,omitempty"`
	GSTIN           string       `json:"gstin,omitempty"`
	Address         string       `json:"address,omitempty"`
	Business        *BusinessRef `json:"businessId,omitempty"`
	Items           []LineItem   `json:"items"`
	GSTType         GSTType      `json:"gstType,omitempty"`
	// GSTPercentage defaults to 18 when absent.
	GSTPercentage valueobject.Amount `json:"gstPercentage"`
	// Total is the persisted total. It can drift from the items and is never displayed.
	Total valueobject.Amount `json:"total"`
	Notes []Note             `json:"notes,omitempty"`
}

// Validate checks the fields a renderer cannot do without.
func (d *Document) Validate() error {
	if d == nil {
		return shared.NewDomainError("INVALID_DOCUMENT", "document is required")
	}
	if !d.Kind.IsValid() {
		return shared.NewDomainError("INVALID_DOCUMENT_KIND", fmt.Sprintf("unknown document kind %q", d.Kind))
	}
	return nil
}

// Number returns the number matching the kind, then the other one.
func (d *Document) Number() string {
	primary, secondary := d.QuotationNumber, d.InvoiceNumber
	if d.Kind == KindInvoice {
		primary, secondary = secondary, primary
	}
	if v := strings.TrimSpace(primary); v != "" {
		return v
	}
	return strings.TrimSpace(secondary)
}

// BusinessAccount returns the populated related account, or nil.
func (d *Document) BusinessAccount() *BusinessAccount {
	if d.Business.Populated() {
		return d.Business.Account
	}
	return nil
}

// BusinessID returns the related account id, if any.
func (d *Document) BusinessID() string {
	if d.Business == nil {
		return ""
	}
	return d.Business.ID
}

// Totals recomputes the money totals from the items. Quotations are taxed at
// the flat default rate whatever GST fields they carry.
func (d *Document) Totals() Totals {
	if d.Kind == KindQuotation {
		return ComputeTotals(d.Items, GSTFlat, valueobject.NewAmount(DefaultGSTRate))
	}
	return ComputeTotals(d.Items, d.GSTType, d.GSTPercentage)
}

// HasItems reports whether the items table should be shown.
func (d *Document) HasItems() bool {
	return len(d.Items) > 0
}

// DraftName is used in file names of documents without a number.
const DraftName = "draft"

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns <number|draft>[_<YYYY-MM-DD>].pdf. The date suffix uses the
// document date and is left out when the date is unknown.
func FileName(d *Document, withDate bool) string {
	base := strings.Trim(unsafeFileChars.ReplaceAllString(d.Number(), "-"), "-.")
	if base == "" {
		base = DraftName
	}
	if withDate && !d.Date.IsZero() {
		base += "_" + d.Date.ISO()
	}
	return base + ".pdf"
}
