package kb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCatalog(t *testing.T) *Catalog {
	t.Helper()
	seed, err := DefaultSeed()
	require.NoError(t, err)
	c, err := NewCatalog(seed)
	require.NoError(t, err)
	return c
}

func TestNormalize(t *testing.T) {
	for _, in := range []string{"  Ayam ", "TAHU", "\tkecap MANIS\n", "", "   ", "Mie Telur"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", in)
	}
	assert.Equal(t, "kecap manis", Normalize("\tKecap Manis \n"))
	assert.Equal(t, "", Normalize("   "))
}

func TestSplitIngredients(t *testing.T) {
	assert.Equal(t, []string{"ayam", "tahu", "kecap manis"}, SplitIngredients(" Ayam,tahu , , Kecap Manis,"))
	assert.Empty(t, SplitIngredients(" , ,"))
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher(defaultCatalog(t))
	ctx := context.Background()

	tests := []struct {
		input   string
		outcome MatchOutcome
		name    string
	}{
		{"  AYAM ", Matched, "ayam"},
		{"Tofu", Matched, "tahu"},
		{"mie telur", Matched, "mie"},
		{"mobil", NotFound, ""},
		{"   ", Empty, ""},
		{"", Empty, ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := m.Match(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, got.Outcome)
			if tt.outcome == Matched {
				assert.Equal(t, tt.name, got.Ingredient.Name)
			} else {
				assert.Nil(t, got.Ingredient)
			}
		})
	}
}

func TestMatcher_SynonymsResolveToSameIngredient(t *testing.T) {
	c := defaultCatalog(t)
	m := NewMatcher(c)
	ctx := context.Background()

	for _, ing := range c.Ingredients() {
		byName, err := m.Match(ctx, ing.Name)
		require.NoError(t, err)
		require.Equal(t, Matched, byName.Outcome)
		for _, syn := range ing.Synonyms {
			bySyn, err := m.Match(ctx, syn)
			require.NoError(t, err)
			require.Equal(t, Matched, bySyn.Outcome, syn)
			assert.Equal(t, byName.Ingredient.ID, bySyn.Ingredient.ID, syn)
		}
	}
}

type brokenStore struct{}

func (brokenStore) FindIngredient(context.Context, string) (*Ingredient, error) {
	return nil, errors.New("db down")
}

func (brokenStore) ListMenuCases(context.Context, uuid.UUID) ([]MenuCase, error) {
	return nil, errors.New("db down")
}

func TestMatcher_StoreFailure(t *testing.T) {
	_, err := NewMatcher(brokenStore{}).Match(context.Background(), "ayam")
	assert.Error(t, err)
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := defaultCatalog(t)
	ctx := context.Background()

	first, err := c.FindIngredient(ctx, "kecap manis")
	require.NoError(t, err)
	first.AllergenTags[0] = "mutated"

	second, err := c.FindIngredient(ctx, "kecap manis")
	require.NoError(t, err)
	assert.Equal(t, []string{"soy", "gluten"}, second.AllergenTags)
}

func TestCatalog_CasesSortedByName(t *testing.T) {
	c := defaultCatalog(t)

	cases, err := c.ListMenuCases(context.Background(), IngredientID("ayam"))
	require.NoError(t, err)
	require.Len(t, cases, 3)
	for i := 1; i < len(cases); i++ {
		assert.LessOrEqual(t, cases[i-1].MenuName, cases[i].MenuName)
	}

	none, err := c.ListMenuCases(context.Background(), IngredientID("tahu"))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestNewCatalog_AuthoringErrors(t *testing.T) {
	allergens := []SeedAllergen{{Name: "soy"}}

	tests := []struct {
		name string
		seed Seed
		err  error
	}{
		{
			name: "duplicate name",
			seed: Seed{Ingredients: []SeedIngredient{{Name: "tahu", Category: "soy"}, {Name: " TAHU", Category: "soy"}}},
			err:  ErrDuplicateName,
		},
		{
			name: "synonym equals another name",
			seed: Seed{Ingredients: []SeedIngredient{{Name: "tahu", Category: "soy"}, {Name: "tempe", Category: "soy", Synonyms: []string{"tahu"}}}},
			err:  ErrSynonymCollision,
		},
		{
			name: "shared synonym",
			seed: Seed{Ingredients: []SeedIngredient{
				{Name: "tahu", Category: "soy", Synonyms: []string{"kedelai"}},
				{Name: "tempe", Category: "soy", Synonyms: []string{"Kedelai"}},
			}},
			err: ErrSynonymCollision,
		},
		{
			name: "name equals earlier synonym",
			seed: Seed{Ingredients: []SeedIngredient{{Name: "tahu", Category: "soy", Synonyms: []string{"tofu"}}, {Name: "tofu", Category: "soy"}}},
			err:  ErrSynonymCollision,
		},
		{
			name: "unknown allergen",
			seed: Seed{Allergens: allergens, Ingredients: []SeedIngredient{{Name: "susu", Category: "dairy", Allergens: []string{"dairy"}}}},
			err:  ErrUnknownAllergen,
		},
		{
			name: "invalid category",
			seed: Seed{Ingredients: []SeedIngredient{{Name: "batu", Category: "mineral"}}},
			err:  ErrInvalidCategory,
		},
		{
			name: "case on unknown ingredient",
			seed: Seed{Cases: []SeedCase{{BaseIngredient: "ayam", MenuName: "Ayam Goreng"}}},
			err:  ErrUnknownIngredient,
		},
		{
			name: "blank ingredient name",
			seed: Seed{Ingredients: []SeedIngredient{{Name: "  ", Category: "misc"}}},
			err:  ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := tt.seed
			_, err := NewCatalog(&seed)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewCatalog_NormalizesAndDedupes(t *testing.T) {
	c, err := NewCatalog(&Seed{
		Allergens: []SeedAllergen{{Name: "Soy"}},
		Ingredients: []SeedIngredient{
			{Name: " Tahu ", Category: "SOY", Synonyms: []string{"Tofu", "tofu", "tahu", ""}, Allergens: []string{"soy", "SOY"}},
		},
	})
	require.NoError(t, err)

	ing, err := c.FindIngredient(context.Background(), "tofu")
	require.NoError(t, err)
	require.NotNil(t, ing)
	assert.Equal(t, "tahu", ing.Name)
	assert.Equal(t, CategorySoy, ing.Category)
	assert.Equal(t, []string{"tofu"}, ing.Synonyms)
	assert.Equal(t, []string{"soy"}, ing.AllergenTags)
	assert.Equal(t, IngredientID("tahu"), ing.ID)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Seafood ")
	require.NoError(t, err)
	assert.Equal(t, CategorySeafood, c)

	_, err = ParseCategory("plastic")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

const tinySeed = `{
  "allergens": [{"name": "egg", "description": "telur"}],
  "ingredients": [{"name": "telur", "category": "egg", "synonyms": ["egg"], "allergens": ["egg"]}],
  "cases": [{"base_ingredient": "telur", "menu_name": "Telur Dadar"}]
}`

func TestLoadSeed_Embedded(t *testing.T) {
	seed, err := LoadSeed(context.Background(), "", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, seed.Ingredients)
}

func TestLoadSeed_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(tinySeed), 0o600))

	seed, err := LoadSeed(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.Len(t, seed.Ingredients, 1)
	assert.Equal(t, "telur", seed.Ingredients[0].Name)

	_, err = LoadSeed(context.Background(), filepath.Join(t.TempDir(), "missing.json"), time.Second)
	assert.Error(t, err)
}

func TestLoadSeed_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/kb.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(tinySeed))
		case "/unknown-field.json":
			_, _ = w.Write([]byte(`{"allergens": [], "extra": true}`))
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	seed, err := LoadSeed(ctx, srv.URL+"/kb.json", 2*time.Second)
	require.NoError(t, err)
	c, err := NewCatalog(seed)
	require.NoError(t, err)
	assert.Len(t, c.Cases(), 1)

	_, err = LoadSeed(ctx, srv.URL+"/broken", 2*time.Second)
	assert.Error(t, err)

	_, err = LoadSeed(ctx, srv.URL+"/unknown-field.json", 2*time.Second)
	assert.Error(t, err)
}
