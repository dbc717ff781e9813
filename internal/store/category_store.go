package store

import (
	"context"
	"database/sql"
	"errors"

	"fintrack/internal/errs"
	"fintrack/internal/models"
)

type CategoryStore struct {
	db DB
}

func NewCategoryStore(db DB) *CategoryStore {
	return &CategoryStore{db: db}
}

type CategoryInput struct {
	ID       string
	UserID   string
	Name     string
	Type     string
	ParentID *string
}

func (s *CategoryStore) Create(ctx context.Context, tx Execer, input CategoryInput) error {
	query := `
		INSERT INTO categories (id, user_id, name, type, parent_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.UserID, input.Name, input.Type, input.ParentID)
	return err
}

func (s *CategoryStore) GetByID(ctx context.Context, userID, categoryID string) (models.Category, error) {
	var row models.Category
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, type, parent_id, created_at
		FROM categories
		WHERE id = $1 AND user_id = $2
	`, categoryID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, errs.NewNotFoundError("category not found")
	}
	if err != nil {
		return models.Category{}, err
	}
	return row, nil
}

func (s *CategoryStore) GetByName(ctx context.Context, userID, name, categoryType string) (models.Category, error) {
	var row models.Category
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, type, parent_id, created_at
		FROM categories
		WHERE user_id = $1 AND name = $2 AND type = $3
	`, userID, name, categoryType)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, errs.NewNotFoundError("category not found")
	}
	if err != nil {
		return models.Category{}, err
	}
	return row, nil
}

func (s *CategoryStore) ListByUser(ctx context.Context, userID string) ([]models.Category, error) {
	var rows []models.Category
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, name, type, parent_id, created_at
		FROM categories
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CategoryStore) Update(ctx context.Context, tx Execer, userID, categoryID string, name *string, parentID *string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE categories
		SET name = COALESCE($1, name),
		    parent_id = COALESCE($2, parent_id)
		WHERE id = $3 AND user_id = $4
	`, name, parentID, categoryID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("category not found")
	}
	return nil
}

func (s *CategoryStore) Delete(ctx context.Context, tx Execer, userID, categoryID string) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM categories
		WHERE id = $1 AND user_id = $2
	`, categoryID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("category not found")
	}
	return nil
}

func (s *CategoryStore) DeleteAllByUser(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE user_id = $1`, userID)
	return err
}

// GetDescendantIDs returns the ids of every category below categoryID
// in the user's tree, excluding categoryID itself.
func (s *CategoryStore) GetDescendantIDs(ctx context.Context, userID, categoryID string) ([]string, error) {
	categories, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return DescendantIDs(categories, categoryID), nil
}

// GetWithDescendants returns categoryID plus its full descendant
// closure, used to scope "spending in this category and below".
func (s *CategoryStore) GetWithDescendants(ctx context.Context, userID, categoryID string) ([]string, error) {
	descendants, err := s.GetDescendantIDs(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	return append([]string{categoryID}, descendants...), nil
}

func (s *CategoryStore) GetRootID(ctx context.Context, userID, categoryID string) (string, error) {
	categories, err := s.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return RootID(categories, categoryID), nil
}

// DescendantIDs walks the parent links iteratively. The visited set
// guards against malformed trees; each node is expanded at most once.
func DescendantIDs(categories []models.Category, categoryID string) []string {
	children := make(map[string][]string, len(categories))
	for _, category := range categories {
		if category.ParentID != nil {
			children[*category.ParentID] = append(children[*category.ParentID], category.ID)
		}
	}
	visited := map[string]struct{}{categoryID: {}}
	var result []string
	queue := []string{categoryID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, childID := range children[current] {
			if _, seen := visited[childID]; seen {
				continue
			}
			visited[childID] = struct{}{}
			result = append(result, childID)
			queue = append(queue, childID)
		}
	}
	return result
}

// RootID follows parent links to the top of the tree. A malformed
// cycle terminates at the first repeated node.
func RootID(categories []models.Category, categoryID string) string {
	parents := make(map[string]*string, len(categories))
	for _, category := range categories {
		parents[category.ID] = category.ParentID
	}
	visited := map[string]struct{}{}
	current := categoryID
	for {
		if _, seen := visited[current]; seen {
			return current
		}
		visited[current] = struct{}{}
		parent, ok := parents[current]
		if !ok || parent == nil {
			return current
		}
		current = *parent
	}
}
