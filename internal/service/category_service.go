package service

import (
	"context"
	"strings"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	pkgerrors "go-inventory-ledger/pkg/errors"
	"go-inventory-ledger/pkg/validator"

	"github.com/google/uuid"
)

type CategoryService interface {
	Create(ctx context.Context, in CategoryInput) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Category, error)
	Update(ctx context.Context, id uuid.UUID, in CategoryInput) (*model.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type categoryService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
}

func NewCategoryService(categories repository.CategoryRepository, products repository.ProductRepository) CategoryService {
	return &categoryService{categories: categories, products: products}
}

func (s *categoryService) Create(ctx context.Context, in CategoryInput) (*model.Category, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if _, err := s.categories.FindByName(ctx, name); err == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "category %s already exists", name)
	} else if !isNotFound(err) {
		return nil, translate(err, "")
	}

	category := &model.Category{Name: name, Description: strings.TrimSpace(in.Description)}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, translate(err, "")
	}
	return category, nil
}

func (s *categoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, translate(err, "")
	}
	if categories == nil {
		categories = []model.Category{}
	}
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "category not found")
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, in CategoryInput) (*model.Category, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "category not found")
	}

	name := strings.TrimSpace(in.Name)
	if !strings.EqualFold(name, category.Name) {
		if existing, err := s.categories.FindByName(ctx, name); err == nil && existing.ID != id {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "category %s already exists", name)
		}
	}
	category.Name = name
	category.Description = strings.TrimSpace(in.Description)
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, translate(err, "category not found")
	}
	return category, nil
}

// Delete refuses to remove a category that products still reference.
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	inUse, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return translate(err, "")
	}
	if inUse > 0 {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "category is used by %d products", inUse)
	}
	return translate(s.categories.Delete(ctx, id), "category not found")
}
