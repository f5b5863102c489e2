// Package lab loads immutable lab definitions from the catalog directory.
package lab

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/rangelab/labctl/internal/domain"
)

const (
	definitionFile = "lab.json"
	starterFile    = "starter.py"
	defaultVerify  = "verify.py"
)

var labIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Catalog resolves lab definitions under a root directory. Each lab
// lives in <root>/<labID>/ with a lab.json definition, optional starter
// material, and an optional verification executable.
type Catalog struct {
	root string
}

// NewCatalog creates a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{root: dir}
}

// definitionSchema is the on-disk lab.json layout. Pointer fields
// distinguish absent from zero so required fields fail loudly and
// optional fields get explicit defaults.
type definitionSchema struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Difficulty   *string  `json:"difficulty"`
	Objectives   []string `json:"objectives"`
	Hints        []string `json:"hints"`
	TimeLimit    *int     `json:"time_limit"`
	VerifyScript *string  `json:"verification_script"`
}

// Load reads and validates the definition for labID. The parse is
// all-or-nothing: any schema violation returns an error and no partial
// definition. A missing lab yields domain.ErrNotFound.
func (c *Catalog) Load(labID string) (*domain.LabDefinition, error) {
	if !labIDPattern.MatchString(labID) {
		return nil, fmt.Errorf("lab id %q: %w", labID, domain.ErrValidation)
	}

	data, err := os.ReadFile(filepath.Join(c.root, labID, definitionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("lab %q: %w", labID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read lab %q: %w", labID, err)
	}

	var schema definitionSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("lab %q: parse definition: %w", labID, domain.ErrValidation)
	}

	def, err := c.build(labID, schema)
	if err != nil {
		return nil, fmt.Errorf("lab %q: %w", labID, err)
	}
	return def, nil
}

func (c *Catalog) build(labID string, schema definitionSchema) (*domain.LabDefinition, error) {
	if schema.Title == nil || *schema.Title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if len(schema.Objectives) == 0 {
		return nil, fmt.Errorf("at least one objective is required: %w", domain.ErrValidation)
	}

	def := &domain.LabDefinition{
		ID:         labID,
		Title:      *schema.Title,
		Difficulty: domain.DifficultyBeginner,
		Objectives: schema.Objectives,
		Hints:      schema.Hints,
	}
	if schema.Description != nil {
		def.Description = *schema.Description
	}
	if schema.Difficulty != nil {
		def.Difficulty = domain.Difficulty(*schema.Difficulty)
		if !def.Difficulty.Valid() {
			return nil, fmt.Errorf("unknown difficulty %q: %w", *schema.Difficulty, domain.ErrValidation)
		}
	}
	if schema.TimeLimit != nil {
		if *schema.TimeLimit <= 0 {
			return nil, fmt.Errorf("time_limit must be positive: %w", domain.ErrValidation)
		}
		def.TimeLimit = *schema.TimeLimit
	}

	def.VerifyCommand = c.resolveVerify(labID, schema.VerifyScript)
	return def, nil
}

// resolveVerify picks the verification executable: the explicit
// verification_script entry when set, otherwise the conventional
// verify.py when present. Paths resolve relative to the lab directory.
func (c *Catalog) resolveVerify(labID string, explicit *string) string {
	labDir := filepath.Join(c.root, labID)
	if explicit != nil && *explicit != "" {
		return filepath.Join(labDir, *explicit)
	}
	conventional := filepath.Join(labDir, defaultVerify)
	if _, err := os.Stat(conventional); err == nil {
		return conventional
	}
	return ""
}

// Hint returns the clamped hint for the given attempt number. A lab
// that ships no hints yields number 0 and no error; having nothing to
// reveal is informational, not a failure.
func (c *Catalog) Hint(labID string, attempt int) (string, int, error) {
	def, err := c.Load(labID)
	if err != nil {
		return "", 0, err
	}
	hint, number, ok := def.Hint(attempt)
	if !ok {
		return "", 0, nil
	}
	return hint, number, nil
}

// HasStarter reports whether the lab ships starter material.
func (c *Catalog) HasStarter(labID string) bool {
	_, err := os.Stat(filepath.Join(c.root, labID, starterFile))
	return err == nil
}

// StarterCode returns the lab's starter material, or ErrNotFound when
// the lab ships none.
func (c *Catalog) StarterCode(labID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(c.root, labID, starterFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("lab %q has no starter material: %w", labID, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read starter for lab %q: %w", labID, err)
	}
	return string(data), nil
}

// List returns every valid lab definition under the catalog root in
// lexical order. Directories without a parseable definition are skipped.
func (c *Catalog) List() ([]*domain.LabDefinition, error) {
	entries, err := os.ReadDir(c.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog root: %w", err)
	}

	var labs []*domain.LabDefinition
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		def, err := c.Load(entry.Name())
		if err != nil {
			continue
		}
		labs = append(labs, def)
	}
	sort.Slice(labs, func(i, j int) bool { return labs[i].ID < labs[j].ID })
	return labs, nil
}
