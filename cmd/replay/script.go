package replay

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/errors"
)

// Script is a scripted sequence of workflow actions on one activity.
type Script struct {
	Activity uint     `yaml:"activity"`
	Actions  []Action `yaml:"actions"`
}

// Action is one scripted step. Exactly one verb must be set.
type Action struct {
	Select    uint          `yaml:"select"`
	Criterion string        `yaml:"criterion"`
	Practice  string        `yaml:"practice"`
	Next      bool          `yaml:"next"`
	Back      bool          `yaml:"back"`
	GoTo      string        `yaml:"goto"`
	Wait      time.Duration `yaml:"wait"` // advances the replay clock, firing due auto-advances
	Save      bool          `yaml:"save"`
	Delete    bool          `yaml:"delete"`

	Expect *Expectation `yaml:"expect"`
}

// Expectation is checked after its action ran.
type Expectation struct {
	Step       string `yaml:"step"`
	Completion *int   `yaml:"completion"`
	Outcome    string `yaml:"outcome"` // toggle outcome: assigned, cleared or rejected
	Error      bool   `yaml:"error"`
}

// verb names the action and checks that exactly one verb is set.
func (a Action) verb() (string, error) {
	var verbs []string
	if a.Select != 0 {
		verbs = append(verbs, "select")
	}
	if a.Criterion != "" {
		verbs = append(verbs, "criterion")
	}
	if a.Practice != "" {
		verbs = append(verbs, "practice")
	}
	if a.Next {
		verbs = append(verbs, "next")
	}
	if a.Back {
		verbs = append(verbs, "back")
	}
	if a.GoTo != "" {
		verbs = append(verbs, "goto")
	}
	if a.Wait > 0 {
		verbs = append(verbs, "wait")
	}
	if a.Save {
		verbs = append(verbs, "save")
	}
	if a.Delete {
		verbs = append(verbs, "delete")
	}
	if len(verbs) != 1 {
		return "", fmt.Errorf("action must set exactly one verb, got %v", verbs)
	}
	return verbs[0], nil
}

// Validate checks the script before anything runs.
func (s *Script) Validate() error {
	if s.Activity == 0 {
		return errors.Newf("script has no activity").
			Component("replay").
			Category(errors.CategoryValidation).
			Build()
	}
	for i, a := range s.Actions {
		verb, err := a.verb()
		if err != nil {
			return errors.New(err).
				Component("replay").
				Category(errors.CategoryValidation).
				Context("action", i+1).
				Build()
		}
		if verb == "goto" {
			if _, ok := assignment.ParseStep(a.GoTo); !ok {
				return errors.Newf("action %d: unknown step %q", i+1, a.GoTo).
					Component("replay").
					Category(errors.CategoryValidation).
					Build()
			}
		}
		if a.Expect != nil && a.Expect.Step != "" {
			if _, ok := assignment.ParseStep(a.Expect.Step); !ok {
				return errors.Newf("action %d: unknown expected step %q", i+1, a.Expect.Step).
					Component("replay").
					Category(errors.CategoryValidation).
					Build()
			}
		}
	}
	return nil
}

// ReadScript decodes and validates a script.
func ReadScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, errors.New(err).
			Component("replay").
			Category(errors.CategoryFileParsing).
			Build()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ReadScriptFile opens and decodes path.
func ReadScriptFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("replay").
			Category(errors.CategoryFileIO).
			Context("file", path).
			Build()
	}
	defer f.Close()
	return ReadScript(f)
}
