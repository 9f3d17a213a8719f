package schema

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "templates.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func customTemplate(name string) *Schema {
	return &Schema{
		Name:        name,
		Description: "test template",
		Sections: []Section{{
			Title: "Main Info:",
			Fields: []Field{
				{Key: "type", Label: "Type of scam", Kind: KindText},
				{Key: "summary", Label: "Short summary", Kind: KindText},
				{Key: "alias", Label: "Alias(es)", Kind: KindList, Required: true},
			},
		}},
		FilenameField: "alias",
	}
}

func TestSaveAndGetCustom(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.SaveCustom(ctx, customTemplate("Romance Scam"))
	if err != nil {
		t.Fatalf("SaveCustom failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Romance Scam" {
		t.Fatalf("Name = %q", got.Name)
	}
	if !got.Custom {
		t.Fatal("expected Custom flag set")
	}
	if len(got.Sections) != 1 || len(got.Sections[0].Fields) != 3 {
		t.Fatalf("sections did not round-trip: %+v", got.Sections)
	}
	if got.FilenameField != "alias" {
		t.Fatalf("FilenameField = %q", got.FilenameField)
	}
}

func TestListOrdersBuiltinsFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	firstID, err := store.SaveCustom(ctx, customTemplate("First Custom"))
	if err != nil {
		t.Fatalf("SaveCustom failed: %v", err)
	}
	secondID, err := store.SaveCustom(ctx, customTemplate("Second Custom"))
	if err != nil {
		t.Fatalf("SaveCustom failed: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	builtins := Builtins()
	if len(list) != len(builtins)+2 {
		t.Fatalf("expected %d entries, got %d", len(builtins)+2, len(list))
	}
	for i, b := range builtins {
		if list[i].ID != b.ID {
			t.Fatalf("entry %d = %q, want built-in %q", i, list[i].ID, b.ID)
		}
	}
	if list[len(builtins)].ID != firstID || list[len(builtins)+1].ID != secondID {
		t.Fatal("custom templates not in insertion order")
	}
}

func TestGetUnknownID(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveCustomRejectsInvalid(t *testing.T) {
	store := openTestStore(t)
	sc := customTemplate("Broken")
	sc.FilenameField = "missing"
	if _, err := store.SaveCustom(context.Background(), sc); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSaveCustomRejectsBuiltinID(t *testing.T) {
	store := openTestStore(t)
	sc := customTemplate("Shadowing")
	sc.ID = AdvanceFeeID
	if _, err := store.SaveCustom(context.Background(), sc); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestDeleteCustom(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.SaveCustom(ctx, customTemplate("Ephemeral"))
	if err != nil {
		t.Fatalf("SaveCustom failed: %v", err)
	}
	if err := store.DeleteCustom(ctx, id); err != nil {
		t.Fatalf("DeleteCustom failed: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteCustom(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
	if err := store.DeleteCustom(ctx, AdvanceFeeID); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for built-in delete, got %v", err)
	}
}

func TestOverwriteExistingCustom(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sc := customTemplate("Original")
	id, err := store.SaveCustom(ctx, sc)
	if err != nil {
		t.Fatalf("SaveCustom failed: %v", err)
	}
	sc.Name = "Renamed"
	if _, err := store.SaveCustom(ctx, sc); err != nil {
		t.Fatalf("second SaveCustom failed: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Renamed" {
		t.Fatalf("Name = %q, want Renamed", got.Name)
	}
}
