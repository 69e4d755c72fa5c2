package printing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/shared"
)

func TestDefaultBrands(t *testing.T) {
	set := DefaultBrands()
	assert.Equal(t, []string{"sundaram", "nimbus"}, set.Codes())

	b, ok := set.Get(" NIMBUS ")
	require.True(t, ok)
	assert.Equal(t, LayoutModern, b.Layout)
	assert.True(t, b.TermsOnSeparatePage)

	r, g, bl := b.AccentRGB()
	assert.Equal(t, []int{0x0f, 0x9d, 0x8a}, []int{r, g, bl})
}

func TestBrandSet_Select(t *testing.T) {
	set := DefaultBrands()

	b, err := set.Select(document.KindInvoice, "nimbus")
	require.NoError(t, err)
	assert.Equal(t, "nimbus", b.Code)

	b, err = set.Select(document.KindQuotation, "")
	require.NoError(t, err)
	assert.Equal(t, "sundaram", b.Code)

	_, err = set.Select(document.KindQuotation, "acme")
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "UNKNOWN_BRAND", de.Code)

	noDefaults := &BrandSet{Brands: set.Brands}
	b, err = noDefaults.Select(document.KindInvoice, "")
	require.NoError(t, err)
	assert.Equal(t, "sundaram", b.Code)
}

func TestBrandSet_SetDefault(t *testing.T) {
	set := DefaultBrands()

	require.NoError(t, set.SetDefault("Nimbus"))
	b, err := set.Select(document.KindQuotation, "")
	require.NoError(t, err)
	assert.Equal(t, "nimbus", b.Code)

	b, err = set.Select(document.KindQuotation, "sundaram")
	require.NoError(t, err)
	assert.Equal(t, "sundaram", b.Code)

	require.Error(t, set.SetDefault("acme"))
	require.NoError(t, set.SetDefault(""))
	b, err = set.Select(document.KindQuotation, "")
	require.NoError(t, err)
	assert.Equal(t, "sundaram", b.Code)
}

func TestParseBrands_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "brands: []", "at least one brand"},
		{"bad layout", "brands:\n  - {code: a, layout: fancy, company_name: A, accent_color: '#000000'}", "unknown layout"},
		{"bad color", "brands:\n  - {code: a, layout: classic, company_name: A, accent_color: red}", "accent_color"},
		{"missing name", "brands:\n  - {code: a, layout: classic, accent_color: '#000000'}", "company_name"},
		{"duplicate", "brands:\n  - {code: a, layout: classic, company_name: A, accent_color: '#000000'}\n  - {code: A, layout: modern, company_name: B, accent_color: '#ffffff'}", "duplicate"},
		{"unknown default", "defaults: {invoice: zz}\nbrands:\n  - {code: a, layout: classic, company_name: A, accent_color: '#000000'}", "unknown brand"},
		{"bad default kind", "defaults: {receipt: a}\nbrands:\n  - {code: a, layout: classic, company_name: A, accent_color: '#000000'}", "defaults"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBrands([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBrands_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brands.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
brands:
  - code: solo
    layout: classic
    company_name: Solo Traders
    accent_color: "#112233"
`), 0o600))

	set, err := LoadBrands(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, set.Codes())

	_, err = LoadBrands(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBrand_ContactLine(t *testing.T) {
	b := Brand{Phone: "+91 1", Email: " ", Website: "x.in"}
	assert.Equal(t, "+91 1 | x.in", b.ContactLine())
}
