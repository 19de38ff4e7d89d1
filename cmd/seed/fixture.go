package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/datastore/repository"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/store"
)

// Fixture is the YAML document loaded by the seed command.
type Fixture struct {
	Domains    []DomainFixture   `yaml:"domains"`
	Criteria   []string          `yaml:"criteria"` // criteria outside any grid
	Practices  []string          `yaml:"practices"`
	Activities []ActivityFixture `yaml:"activities"`
}

// DomainFixture is an evaluation grid and its criteria.
type DomainFixture struct {
	Name     string   `yaml:"name"`
	Criteria []string `yaml:"criteria"`
}

// ActivityFixture is an activity and its post-its.
type ActivityFixture struct {
	Name        string              `yaml:"name"`
	Annotations []AnnotationFixture `yaml:"annotations"`
}

// AnnotationFixture is one post-it. Criterion and Practice are catalog
// names, matched ignoring case and accents.
type AnnotationFixture struct {
	Text      string `yaml:"text"`
	Passage   string `yaml:"passage"`
	Criterion string `yaml:"criterion"`
	Practice  string `yaml:"practice"`
	Step      string `yaml:"step"`
}

// ReadFixture decodes a fixture, rejecting unknown keys.
func ReadFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, errors.New(err).
			Component("seed").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return &f, nil
}

// ReadFixtureFile opens and decodes path.
func ReadFixtureFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("seed").
			Category(errors.CategoryFileIO).
			Context("file", path).
			Build()
	}
	defer file.Close()
	return ReadFixture(file)
}

// Target is what a fixture is written to.
type Target interface {
	Catalog() repository.CatalogRepository
	CreateAnnotation(ctx context.Context, a assignment.Annotation) (assignment.Annotation, error)
	UpsertActivityAssociation(ctx context.Context, activityID uint, kind store.AssociationKind, id uint) error
}

// Resolver finds catalog entries by name.
type Resolver interface {
	FindCriterion(ctx context.Context, name string) (assignment.Candidate, error)
	FindPractice(ctx context.Context, name string) (assignment.Candidate, error)
	Flush()
}

// SeededActivity lists the annotations created for one activity.
type SeededActivity struct {
	ID          uint
	Name        string
	Annotations []uint
}

// Report summarizes a seed run.
type Report struct {
	Domains    int
	Criteria   int
	Practices  int
	Activities []SeededActivity
}

// Apply writes f to target. Catalog entries are created only when missing;
// annotations are always added. Assigned annotations get their activity
// associations so the workflow starts from a consistent state.
func Apply(ctx context.Context, target Target, resolver Resolver, f *Fixture) (Report, error) {
	var rep Report
	repo := target.Catalog()

	for _, d := range f.Domains {
		domain, err := repo.GetOrCreateDomain(ctx, d.Name)
		if err != nil {
			return rep, fmt.Errorf("domain %q: %w", d.Name, err)
		}
		rep.Domains++
		for _, name := range d.Criteria {
			if _, err := repo.GetOrCreateCriterion(ctx, name, &domain.ID); err != nil {
				return rep, fmt.Errorf("criterion %q: %w", name, err)
			}
			rep.Criteria++
		}
	}
	for _, name := range f.Criteria {
		if _, err := repo.GetOrCreateCriterion(ctx, name, nil); err != nil {
			return rep, fmt.Errorf("criterion %q: %w", name, err)
		}
		rep.Criteria++
	}
	for _, name := range f.Practices {
		if _, err := repo.GetOrCreatePractice(ctx, name); err != nil {
			return rep, fmt.Errorf("practice %q: %w", name, err)
		}
		rep.Practices++
	}

	resolver.Flush()

	for _, af := range f.Activities {
		activity, err := repo.GetOrCreateActivity(ctx, af.Name)
		if err != nil {
			return rep, fmt.Errorf("activity %q: %w", af.Name, err)
		}
		seeded := SeededActivity{ID: activity.ID, Name: activity.Name}
		for i, nf := range af.Annotations {
			a, err := buildAnnotation(ctx, resolver, activity.ID, nf)
			if err != nil {
				return rep, fmt.Errorf("activity %q annotation %d: %w", af.Name, i+1, err)
			}
			created, err := target.CreateAnnotation(ctx, a)
			if err != nil {
				return rep, fmt.Errorf("activity %q annotation %d: %w", af.Name, i+1, err)
			}
			if err := associate(ctx, target, created); err != nil {
				return rep, err
			}
			seeded.Annotations = append(seeded.Annotations, created.ID)
		}
		rep.Activities = append(rep.Activities, seeded)
	}
	return rep, nil
}

func buildAnnotation(ctx context.Context, resolver Resolver, activityID uint, nf AnnotationFixture) (assignment.Annotation, error) {
	a := assignment.NewAnnotation(0, activityID, nf.Text)
	a.SelectedSourcePassage = nf.Passage

	if nf.Step != "" {
		step, ok := assignment.ParseStep(nf.Step)
		if !ok {
			return a, errors.Newf("unknown step %q", nf.Step).
				Component("seed").
				Category(errors.CategoryValidation).
				Build()
		}
		a.StepOverride = &step
	}

	if nf.Criterion != "" {
		c, err := resolver.FindCriterion(ctx, nf.Criterion)
		if err != nil {
			return a, err
		}
		a.CriterionID = assignment.ID(c.ID)
		a.CriterionLabel = c.Label
		a.DomainID = c.DomainID
	}
	if nf.Practice != "" {
		if a.CriterionID == nil {
			return a, errors.Newf("practice %q without a criterion", nf.Practice).
				Component("seed").
				Category(errors.CategoryValidation).
				Build()
		}
		p, err := resolver.FindPractice(ctx, nf.Practice)
		if err != nil {
			return a, err
		}
		a.PracticeID = assignment.ID(p.ID)
		a.PracticeLabel = p.Label
	}
	return a, nil
}

func associate(ctx context.Context, target Target, a assignment.Annotation) error {
	if a.CriterionID != nil {
		if err := target.UpsertActivityAssociation(ctx, a.ActivityID, store.KindCriterion, *a.CriterionID); err != nil {
			return err
		}
	}
	if a.PracticeID != nil {
		if err := target.UpsertActivityAssociation(ctx, a.ActivityID, store.KindPractice, *a.PracticeID); err != nil {
			return err
		}
	}
	return nil
}
