package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"school-meal-engine/internal/core/assignment"
	"school-meal-engine/internal/core/cbr"
	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/core/selection"
	"school-meal-engine/internal/infrastructure/config"
	"school-meal-engine/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func seededKnowledge(t *testing.T, db *gorm.DB) *KnowledgeStore {
	t.Helper()
	store := NewKnowledgeStore(db)
	_, err := store.SeedKnowledge(context.Background(), testutil.Catalog(t))
	require.NoError(t, err)
	return store
}

func TestSeedKnowledge_Idempotent(t *testing.T) {
	db := openTestDB(t)
	store := NewKnowledgeStore(db)
	catalog := testutil.Catalog(t)
	ctx := context.Background()

	first, err := store.SeedKnowledge(ctx, catalog)
	require.NoError(t, err)
	second, err := store.SeedKnowledge(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	require.NoError(t, db.Model(&IngredientModel{}).Count(&count).Error)
	assert.Equal(t, int64(len(catalog.Ingredients())), count)
	require.NoError(t, db.Model(&SynonymModel{}).Count(&count).Error)
	assert.Equal(t, int64(first.Synonyms), count)
}

func TestKnowledgeStore_MatchesCatalog(t *testing.T) {
	db := openTestDB(t)
	store := seededKnowledge(t, db)
	catalog := testutil.Catalog(t)
	ctx := context.Background()

	for _, name := range []string{"ayam", "ayam kampung", "tofu", "kecap", "mie telur", "mobil"} {
		want, err := catalog.FindIngredient(ctx, name)
		require.NoError(t, err)
		got, err := store.FindIngredient(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	ayam := kb.IngredientID("ayam")
	want, _ := catalog.ListMenuCases(ctx, ayam)
	got, err := store.ListMenuCases(ctx, ayam)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestKnowledgeStore_DrivesCaseRetrieval(t *testing.T) {
	store := seededKnowledge(t, openTestDB(t))
	r := cbr.NewRetriever(store, nil)
	ctx := context.Background()

	tahu, err := r.RetrieveCases(ctx, "tahu")
	require.NoError(t, err)
	assert.True(t, tahu.Found)
	assert.Empty(t, tahu.Cases)

	mobil, err := r.RetrieveCases(ctx, "mobil")
	require.NoError(t, err)
	assert.False(t, mobil.Found)
}

func TestKnowledgeStore_ListAllergens(t *testing.T) {
	store := seededKnowledge(t, openTestDB(t))

	list, err := store.ListAllergens(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, "dairy", list[0].Name)
}

func TestChoiceStore_CreateRespectsUniqueKey(t *testing.T) {
	store := NewChoiceStore(openTestDB(t))
	ctx := context.Background()
	student := uuid.New()

	first := &selection.StudentMenuChoice{
		StudentID:      student,
		WeekStart:      "2025-03-10",
		Day:            selection.DaySenin,
		Choice:         selection.ChoiceHarian,
		IsAutoAssigned: true,
	}
	require.NoError(t, store.Create(ctx, first))

	dup := *first
	dup.ID = uuid.New()
	dup.Choice = selection.ChoiceSehat
	assert.ErrorIs(t, store.Create(ctx, &dup), selection.ErrChoiceExists)

	exists, err := store.Exists(ctx, student, "2025-03-10", selection.DaySenin)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, student, "2025-03-10", selection.DaySelasa)
	require.NoError(t, err)
	assert.False(t, exists)

	list, err := store.ListForWeek(ctx, student, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, selection.ChoiceHarian, list[0].Choice)
}

func TestChoiceStore_UpsertKeepsIdentity(t *testing.T) {
	store := NewChoiceStore(openTestDB(t))
	ctx := context.Background()
	student := uuid.New()

	c := &selection.StudentMenuChoice{ID: uuid.New(), StudentID: student, WeekStart: "2025-03-10", Day: selection.DayRabu, Choice: selection.ChoiceHarian}
	require.NoError(t, store.Upsert(ctx, c))
	firstID := c.ID

	again := &selection.StudentMenuChoice{ID: uuid.New(), StudentID: student, WeekStart: "2025-03-10", Day: selection.DayRabu, Choice: selection.ChoiceSehat}
	require.NoError(t, store.Upsert(ctx, again))

	assert.Equal(t, firstID, again.ID)
	assert.Equal(t, selection.ChoiceSehat, again.Choice)

	list, err := store.ListForWeek(ctx, student, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMenuStore_FindUpcomingActiveMenu(t *testing.T) {
	store := NewMenuStore(openTestDB(t))
	ctx := context.Background()
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, testutil.Jakarta)

	inactive := testutil.Menu(monday)
	inactive.IsActive = false
	require.NoError(t, store.SaveMenu(ctx, &inactive))

	later := testutil.Menu(monday.AddDate(0, 0, 7))
	later.Items = []selection.MenuItem{
		{Day: selection.DaySenin, Choice: selection.ChoiceHarian, Name: "Tahu Bacem", Ingredients: []string{"tahu", "kecap manis"}, Allergens: []string{"soy"}},
		{Day: selection.DaySenin, Choice: selection.ChoiceSehat, Name: "Sop Ayam"},
	}
	require.NoError(t, store.SaveMenu(ctx, &later))

	got, err := store.FindUpcomingActiveMenu(ctx, time.Date(2025, 3, 7, 17, 0, 0, 0, testutil.Jakarta))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, later.ID, got.ID)
	assert.True(t, got.WeekStart.Equal(later.WeekStart))
	require.Len(t, got.Items, 2)
	assert.Equal(t, []string{"tahu", "kecap manis"}, got.Items[0].Ingredients)
	assert.Equal(t, []string{}, got.Items[1].Allergens)

	none, err := store.FindUpcomingActiveMenu(ctx, later.WeekStart)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStudentStore_SaveAndList(t *testing.T) {
	db := openTestDB(t)
	seededKnowledge(t, db)
	store := NewStudentStore(db)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.SaveStudent(ctx, id, "Sari", []string{"Soy", "dairy"}, "udang"))
	require.NoError(t, store.SaveStudent(ctx, id, "Sari W.", []string{"soy"}, "udang, cumi"))

	got, err := store.FindStudent(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"soy"}, got.Allergens)
	assert.Equal(t, []string{"soy", "udang", "cumi"}, got.Tags())

	err = store.SaveStudent(ctx, uuid.New(), "Budi", []string{"durian"}, "")
	assert.ErrorIs(t, err, kb.ErrUnknownAllergen)

	missing, err := store.FindStudent(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAutoAssignment_AgainstDatabase(t *testing.T) {
	db := openTestDB(t)
	seededKnowledge(t, db)
	students := NewStudentStore(db)
	choices := NewChoiceStore(db)
	menus := NewMenuStore(db)
	ctx := context.Background()

	plain, soy := uuid.New(), uuid.New()
	require.NoError(t, students.SaveStudent(ctx, plain, "Andi", nil, ""))
	require.NoError(t, students.SaveStudent(ctx, soy, "Bunga", []string{"soy"}, ""))
	menu := testutil.Menu(time.Date(2025, 3, 10, 0, 0, 0, 0, testutil.Jakarta))
	require.NoError(t, menus.SaveMenu(ctx, &menu))

	sched := assignment.NewScheduler(selection.DefaultPolicy(testutil.Jakarta), students, choices, menus)
	cutoff := time.Date(2025, 3, 7, 17, 0, 0, 0, testutil.Jakarta)

	first, err := sched.RunAutoAssignment(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", first.WeekStart)
	assert.Equal(t, 10, first.Created)

	second, err := sched.RunAutoAssignment(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 10, second.Skipped)

	var rows int64
	require.NoError(t, db.Model(&ChoiceModel{}).Count(&rows).Error)
	assert.Equal(t, int64(10), rows)

	list, err := choices.ListForWeek(ctx, soy, "2025-03-10")
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, selection.DaySenin, list[0].Day)
	assert.Equal(t, selection.ChoiceSehat, list[0].Choice)
	assert.True(t, list[0].IsAutoAssigned)
}
