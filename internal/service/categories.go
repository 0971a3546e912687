package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sadopc/worklog/internal/store"
)

type CategoryInput struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
}

func (s *Service) Categories(ctx context.Context) ([]store.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) Category(ctx context.Context, id string) (*store.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	return c, categoryErr(err)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*store.Category, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	c := &store.Category{Name: strings.TrimSpace(*in.Name)}
	if in.Color != nil {
		c.Color = *in.Color
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, categoryErr(err)
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*store.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, categoryErr(err)
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("%w: category name cannot be empty", ErrInvalid)
		}
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Color != nil {
		c.Color = *in.Color
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, categoryErr(err)
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return categoryErr(s.store.DeleteCategory(ctx, id))
}

// categoryErr maps store failures onto the service's sentinels.
func categoryErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrCategoryNotFound, err)
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrDefaultCategory),
		errors.Is(err, store.ErrCategoryInUse):
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return err
}
