package printing

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared"
)

//go:embed brands.yaml
var defaultBrandsYAML []byte

// Layouts a brand can use.
const (
	LayoutClassic = "classic"
	LayoutModern  = "modern"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// BankDetails are printed under the totals so customers can pay by transfer.
type BankDetails struct {
	AccountName   string `yaml:"account_name" json:"accountName"`
	BankName      string `yaml:"bank_name" json:"bankName"`
	Branch        string `yaml:"branch" json:"branch"`
	AccountNumber string `yaml:"account_number" json:"accountNumber"`
	IFSC          string `yaml:"ifsc" json:"ifsc"`
}

// Brand is one letterhead.
type Brand struct {
	Code                string       `yaml:"code" json:"code"`
	Layout              string       `yaml:"layout" json:"layout"`
	CompanyName         string       `yaml:"company_name" json:"companyName"`
	Tagline             string       `yaml:"tagline" json:"tagline,omitempty"`
	AddressLines        []string     `yaml:"address_lines" json:"addressLines"`
	GSTIN               string       `yaml:"gstin" json:"gstin,omitempty"`
	Phone               string       `yaml:"phone" json:"phone,omitempty"`
	Email               string       `yaml:"email" json:"email,omitempty"`
	Website             string       `yaml:"website" json:"website,omitempty"`
	AccentColor         string       `yaml:"accent_color" json:"accentColor"`
	Signatory           string       `yaml:"signatory" json:"signatory,omitempty"`
	Bank                *BankDetails `yaml:"bank" json:"bank,omitempty"`
	Terms               []string     `yaml:"terms" json:"terms,omitempty"`
	TermsOnSeparatePage bool         `yaml:"terms_on_separate_page" json:"termsOnSeparatePage"`
}

// AccentRGB returns the accent color as RGB components.
func (b Brand) AccentRGB() (r, g, bl int) {
	if !hexColor.MatchString(b.AccentColor) {
		return 0, 0, 0
	}
	_, _ = fmt.Sscanf(b.AccentColor[1:], "%02x%02x%02x", &r, &g, &bl)
	return r, g, bl
}

// ContactLine joins phone, email and website for the letterhead.
func (b Brand) ContactLine() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{b.Phone, b.Email, b.Website} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

// HasTerms reports whether the brand prints terms and conditions.
func (b Brand) HasTerms() bool {
	return len(b.Terms) > 0
}

func (b Brand) validate() error {
	if strings.TrimSpace(b.Code) == "" {
		return fmt.Errorf("brand code is required")
	}
	if b.Layout != LayoutClassic && b.Layout != LayoutModern {
		return fmt.Errorf("brand %s: unknown layout %q", b.Code, b.Layout)
	}
	if strings.TrimSpace(b.CompanyName) == "" {
		return fmt.Errorf("brand %s: company_name is required", b.Code)
	}
	if !hexColor.MatchString(b.AccentColor) {
		return fmt.Errorf("brand %s: accent_color must be #rrggbb, got %q", b.Code, b.AccentColor)
	}
	return nil
}

// BrandStrategy picks the letterhead for a document.
type BrandStrategy interface {
	Select(kind document.Kind, code string) (Brand, error)
}

// BrandSet is a validated collection of brands.
type BrandSet struct {
	Brands   []Brand           `yaml:"brands"`
	Defaults map[string]string `yaml:"defaults"`

	preferred string
}

// LoadBrands reads brands from path, or the embedded set when path is empty.
func LoadBrands(path string) (*BrandSet, error) {
	if path == "" {
		return ParseBrands(defaultBrandsYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brands file %s: %w", path, err)
	}
	return ParseBrands(data)
}

// DefaultBrands returns the embedded brand set.
func DefaultBrands() *BrandSet {
	set, err := ParseBrands(defaultBrandsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded brands.yaml is invalid: %v", err))
	}
	return set
}

// ParseBrands decodes and validates a YAML brand list.
func ParseBrands(data []byte) (*BrandSet, error) {
	var set BrandSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse brands: %w", err)
	}
	if len(set.Brands) == 0 {
		return nil, fmt.Errorf("at least one brand is required")
	}

	seen := make(map[string]bool, len(set.Brands))
	for i := range set.Brands {
		b := &set.Brands[i]
		b.Code = strings.ToLower(strings.TrimSpace(b.Code))
		if err := b.validate(); err != nil {
			return nil, err
		}
		if seen[b.Code] {
			return nil, fmt.Errorf("duplicate brand code %q", b.Code)
		}
		seen[b.Code] = true
	}

	for kind, code := range set.Defaults {
		if _, err := document.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
		code = strings.ToLower(strings.TrimSpace(code))
		if !seen[code] {
			return nil, fmt.Errorf("defaults: %s refers to unknown brand %q", kind, code)
		}
		set.Defaults[kind] = code
	}
	return &set, nil
}

// Get returns the brand with the given code.
func (s *BrandSet) Get(code string) (Brand, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, b := range s.Brands {
		if b.Code == code {
			return b, true
		}
	}
	return Brand{}, false
}

// Codes lists the brand codes in file order.
func (s *BrandSet) Codes() []string {
	codes := make([]string, len(s.Brands))
	for i, b := range s.Brands {
		codes[i] = b.Code
	}
	return codes
}

// SetDefault makes code the brand for requests that name none, ahead of the
// per-kind defaults. An empty code clears it.
func (s *BrandSet) SetDefault(code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if code != "" {
		if _, ok := s.Get(code); !ok {
			return fmt.Errorf("default brand %q is not defined", code)
		}
	}
	s.preferred = code
	return nil
}

// Select resolves an explicit code first, then the configured default, then the
// default for the kind, then the first brand. An explicit code that does not
// exist is an error.
func (s *BrandSet) Select(kind document.Kind, code string) (Brand, error) {
	if strings.TrimSpace(code) != "" {
		if b, ok := s.Get(code); ok {
			return b, nil
		}
		return Brand{}, shared.NewDomainError("UNKNOWN_BRAND", fmt.Sprintf("unknown brand %q", code))
	}
	if s.preferred != "" {
		if b, ok := s.Get(s.preferred); ok {
			return b, nil
		}
	}
	if def, ok := s.Defaults[kind.String()]; ok {
		if b, ok := s.Get(def); ok {
			return b, nil
		}
	}
	return s.Brands[0], nil
}

var _ BrandStrategy = (*BrandSet)(nil)
