package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"testing"

	"fintrack/internal/errs"
	"fintrack/internal/models"
)

func category(id string, parentID *string) models.Category {
	return models.Category{ID: id, UserID: "user-1", Type: "expense", ParentID: parentID}
}

func TestDescendantIDs(t *testing.T) {
	food := "food"
	groceries := "groceries"
	tree := []models.Category{
		category("food", nil),
		category("groceries", &food),
		category("produce", &groceries),
		category("restaurants", &food),
		category("travel", nil),
	}

	got := DescendantIDs(tree, "food")
	sort.Strings(got)
	want := []string{"groceries", "produce", "restaurants"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if got := DescendantIDs(tree, "travel"); len(got) != 0 {
		t.Fatalf("expected no descendants, got %v", got)
	}
	if got := DescendantIDs(tree, "unknown"); len(got) != 0 {
		t.Fatalf("expected no descendants for an unknown id, got %v", got)
	}
}

func TestDescendantIDsTerminatesOnCycle(t *testing.T) {
	a, b := "a", "b"
	malformed := []models.Category{
		category("a", &b),
		category("b", &a),
	}

	got := DescendantIDs(malformed, "a")
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected only b, got %v", got)
	}
}

func TestRootID(t *testing.T) {
	food := "food"
	groceries := "groceries"
	tree := []models.Category{
		category("food", nil),
		category("groceries", &food),
		category("produce", &groceries),
	}

	if got := RootID(tree, "produce"); got != "food" {
		t.Fatalf("expected food, got %s", got)
	}
	if got := RootID(tree, "food"); got != "food" {
		t.Fatalf("expected food, got %s", got)
	}
}

func TestRootIDTerminatesOnCycle(t *testing.T) {
	a, b := "a", "b"
	malformed := []models.Category{
		category("a", &b),
		category("b", &a),
	}

	got := RootID(malformed, "a")
	if got != "a" {
		t.Fatalf("expected the walk to stop at the first repeat, got %s", got)
	}
}

func TestCategoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO categories") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[0] != "cat-1" || args[3] != "expense" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewCategoryStore(stubDB{})
	err := store.Create(ctx, execer, CategoryInput{ID: "cat-1", UserID: "user-1", Name: "Food", Type: "expense"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCategoryStoreGetByNameNotFound(t *testing.T) {
	store := NewCategoryStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error {
			return sql.ErrNoRows
		},
	})
	_, err := store.GetByName(context.Background(), "user-1", "Missing", "expense")
	if !errs.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestCategoryStoreGetWithDescendants(t *testing.T) {
	food := "food"
	store := NewCategoryStore(stubDB{
		selectFn: func(_ context.Context, dest any, _ string, _ ...any) error {
			*dest.(*[]models.Category) = []models.Category{
				category("food", nil),
				category("groceries", &food),
			}
			return nil
		},
	})
	ids, err := store.GetWithDescendants(context.Background(), "user-1", "food")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "food" {
		t.Fatalf("expected the id itself first, got %v", ids)
	}
}
