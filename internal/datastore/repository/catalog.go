package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/evalgrid/postit/internal/datastore/entities"
)

// CatalogRepository provides access to grids, criteria, practices and
// activities.
type CatalogRepository interface {
	// GetOrCreateDomain returns the grid called name, creating it if needed.
	GetOrCreateDomain(ctx context.Context, name string) (*entities.Domain, error)
	// GetOrCreateCriterion returns the criterion called name. A new criterion
	// is attached to domainID.
	GetOrCreateCriterion(ctx context.Context, name string, domainID *uint) (*entities.Criterion, error)
	// GetOrCreatePractice returns the practice called name, creating it if needed.
	GetOrCreatePractice(ctx context.Context, name string) (*entities.Practice, error)
	// GetOrCreateActivity returns the activity called name, creating it if needed.
	GetOrCreateActivity(ctx context.Context, name string) (*entities.Activity, error)

	// GetCriterion returns ErrCriterionNotFound if missing.
	GetCriterion(ctx context.Context, id uint) (*entities.Criterion, error)
	// GetPractice returns ErrPracticeNotFound if missing.
	GetPractice(ctx context.Context, id uint) (*entities.Practice, error)
	// GetActivity returns ErrActivityNotFound if missing.
	GetActivity(ctx context.Context, id uint) (*entities.Activity, error)

	ListCriteria(ctx context.Context) ([]*entities.Criterion, error)
	ListPractices(ctx context.Context) ([]*entities.Practice, error)
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// getOrCreate looks dest up by name and creates it from dest when missing.
// A concurrent insert of the same name is resolved by re-reading.
func getOrCreate[T any](ctx context.Context, db *gorm.DB, name string, dest *T) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidInput
	}
	var found T
	err := db.WithContext(ctx).Where("name = ?", name).First(&found).Error
	if err == nil {
		*dest = found
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	createErr := db.WithContext(ctx).Create(dest).Error
	if createErr == nil {
		return nil
	}
	if findErr := db.WithContext(ctx).Where("name = ?", name).First(&found).Error; findErr != nil {
		return createErr
	}
	*dest = found
	return nil
}

func (r *catalogRepository) GetOrCreateDomain(ctx context.Context, name string) (*entities.Domain, error) {
	d := entities.Domain{Name: strings.TrimSpace(name)}
	if err := getOrCreate(ctx, r.db, name, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *catalogRepository) GetOrCreateCriterion(ctx context.Context, name string, domainID *uint) (*entities.Criterion, error) {
	c := entities.Criterion{Name: strings.TrimSpace(name), DomainID: domainID}
	if err := getOrCreate(ctx, r.db, name, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *catalogRepository) GetOrCreatePractice(ctx context.Context, name string) (*entities.Practice, error) {
	p := entities.Practice{Name: strings.TrimSpace(name)}
	if err := getOrCreate(ctx, r.db, name, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *catalogRepository) GetOrCreateActivity(ctx context.Context, name string) (*entities.Activity, error) {
	a := entities.Activity{Name: strings.TrimSpace(name)}
	if err := getOrCreate(ctx, r.db, name, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// first loads row id into dest, mapping a missing row to notFound.
func first[T any](ctx context.Context, db *gorm.DB, id uint, notFound error) (*T, error) {
	var dest T
	err := db.WithContext(ctx).First(&dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &dest, nil
}

func (r *catalogRepository) GetCriterion(ctx context.Context, id uint) (*entities.Criterion, error) {
	return first[entities.Criterion](ctx, r.db, id, ErrCriterionNotFound)
}

func (r *catalogRepository) GetPractice(ctx context.Context, id uint) (*entities.Practice, error) {
	return first[entities.Practice](ctx, r.db, id, ErrPracticeNotFound)
}

func (r *catalogRepository) GetActivity(ctx context.Context, id uint) (*entities.Activity, error) {
	return first[entities.Activity](ctx, r.db, id, ErrActivityNotFound)
}

func (r *catalogRepository) ListCriteria(ctx context.Context) ([]*entities.Criterion, error) {
	var out []*entities.Criterion
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *catalogRepository) ListPractices(ctx context.Context) ([]*entities.Practice, error) {
	var out []*entities.Practice
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}
