package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)

	assert.Greater(t, tbl.Size(), 20)
	assert.Equal(t, 28, tbl.Frequency("jeans"))
	assert.True(t, tbl.IsBrand("samsung"))
	assert.True(t, tbl.IsCategory("laptop"))
	assert.True(t, tbl.IsStopWord("for"))
	assert.False(t, tbl.IsStopWord("jeans"))

	canonical, ok := tbl.Canonical("jeins")
	require.True(t, ok)
	assert.Equal(t, "jeans", canonical)

	_, ok = tbl.Canonical("jeans")
	assert.False(t, ok)
}

func TestLoad_BrandsAreVocabulary(t *testing.T) {
	tbl := MustLoadDefaults()

	// Brands enter the lexicon with minimal weight so the corrector
	// recognizes them but never prefers them as corrections.
	assert.Equal(t, 1, tbl.Frequency("oneplus"))
}

func TestLoad_OverlayExtendsDefaults(t *testing.T) {
	dir := t.TempDir()
	overlay := []byte(`
lexicon:
  hoodie: 12
brands:
  - newbrand
misspellings:
  hodie: hoodie
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tables.yaml"), overlay, 0o644))

	tbl, err := Load(dir)
	require.NoError(t, err)

	// Overlay entries present
	assert.Equal(t, 12, tbl.Frequency("hoodie"))
	assert.True(t, tbl.IsBrand("newbrand"))

	// Defaults still present
	assert.True(t, tbl.IsBrand("samsung"))
	assert.Equal(t, 28, tbl.Frequency("jeans"))
}

func TestLoad_MissingOverlayDirFile(t *testing.T) {
	tbl, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, tbl.IsBrand("apple"))
}

func TestModifierClass(t *testing.T) {
	tbl := MustLoadDefaults()

	assert.Equal(t, "positive", tbl.ModifierClass("best"))
	assert.Equal(t, "neutral", tbl.ModifierClass("budget"))
	assert.Equal(t, "negative", tbl.ModifierClass("worst"))
	assert.Equal(t, "", tbl.ModifierClass("jeans"))
}

func TestBudgetRange(t *testing.T) {
	tbl := MustLoadDefaults()

	r, ok := tbl.BudgetRange("mobile")
	require.True(t, ok)
	assert.Equal(t, 0.0, r.Min)
	assert.Equal(t, 10000.0, r.Max)

	_, ok = tbl.BudgetRange("saree")
	assert.False(t, ok)
}

func TestExpansions(t *testing.T) {
	tbl := MustLoadDefaults()

	exp := tbl.Expansions("jeans")
	assert.Contains(t, exp, "denim")
	assert.Contains(t, exp, "trouser")

	assert.Nil(t, tbl.Expansions("unknownterm"))
}
