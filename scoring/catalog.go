package scoring

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hubenschmidt/go-admissions/core"
)

// Program is a degree program a profile can be matched against.
type Program struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Faculty      string   `yaml:"faculty" json:"faculty"`
	Duration     string   `yaml:"duration" json:"duration"`
	MinimumScore float64  `yaml:"minimum_score" json:"minimum_score"`
	RequiredTags []string `yaml:"required_tags" json:"required_tags"`
	Keywords     []string `yaml:"keywords" json:"keywords"`
}

// Catalog is an immutable set of programs keyed by id.
type Catalog struct {
	programs []Program
	byID     map[string]int
}

type catalogFile struct {
	Programs []Program `yaml:"programs"`
}

// NewCatalog validates programs and indexes them by id.
func NewCatalog(programs []Program) (*Catalog, error) {
	c := &Catalog{
		programs: make([]Program, 0, len(programs)),
		byID:     make(map[string]int, len(programs)),
	}
	seen := make(map[string]bool, len(programs))
	for _, p := range programs {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, core.Validationf("program %q has no id", p.Name)
		}
		if seen[p.ID] {
			return nil, core.Validationf("duplicate program id %s", p.ID)
		}
		seen[p.ID] = true
		if p.MinimumScore < 0 {
			return nil, core.Validationf("program %s has a negative minimum score", p.ID)
		}
		c.programs = append(c.programs, p)
	}

	sort.SliceStable(c.programs, func(i, j int) bool { return lessID(c.programs[i].ID, c.programs[j].ID) })
	for i, p := range c.programs {
		c.byID[p.ID] = i
	}
	return c, nil
}

// LoadCatalog reads a YAML file with a top-level programs list.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse catalog %s: %v", core.ErrInvalidConfig, path, err)
	}
	return NewCatalog(f.Programs)
}

// Get returns a program by id, or an error wrapping core.ErrNotFound.
func (c *Catalog) Get(id string) (Program, error) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Program{}, fmt.Errorf("program %s: %w", id, core.ErrNotFound)
	}
	return c.programs[i], nil
}

// Programs returns every program ordered by id.
func (c *Catalog) Programs() []Program {
	return append([]Program(nil), c.programs...)
}

func (c *Catalog) Len() int {
	return len(c.programs)
}

// DefaultCatalog returns the built-in undergraduate programs.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultPrograms)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultPrograms = []Program{
	{
		ID:           "1",
		Name:         "Bachelor of Computer Science",
		Description:  "A comprehensive program covering programming, algorithms, data structures, and software engineering.",
		Faculty:      "Faculty of Computing and Engineering",
		Duration:     "4 years",
		MinimumScore: 3.0,
		RequiredTags: []string{"Mathematics", "Computer", "Physics"},
		Keywords:     []string{"programming", "software", "computer", "technology", "IT", "development", "coding", "web", "app", "artificial intelligence", "data science"},
	},
	{
		ID:           "2",
		Name:         "Bachelor of Business Administration",
		Description:  "Develop skills in management, marketing, finance, and entrepreneurship.",
		Faculty:      "Faculty of Business and Management",
		Duration:     "4 years",
		MinimumScore: 2.5,
		RequiredTags: []string{"Mathematics", "Economics"},
		Keywords:     []string{"business", "management", "marketing", "finance", "economics", "entrepreneurship", "leadership", "accounting"},
	},
	{
		ID:           "3",
		Name:         "Bachelor of Medicine and Surgery (MBBS)",
		Description:  "Become a medical doctor through this comprehensive medical program.",
		Faculty:      "Faculty of Medicine",
		Duration:     "5 years",
		MinimumScore: 3.5,
		RequiredTags: []string{"Biology", "Chemistry", "Physics"},
		Keywords:     []string{"medicine", "doctor", "healthcare", "medical", "biology", "anatomy", "physiology", "health"},
	},
	{
		ID:           "4",
		Name:         "Bachelor of Electrical Engineering",
		Description:  "Study power systems, electronics, control systems, and telecommunications.",
		Faculty:      "Faculty of Computing and Engineering",
		Duration:     "4 years",
		MinimumScore: 3.0,
		RequiredTags: []string{"Mathematics", "Physics"},
		Keywords:     []string{"engineering", "electrical", "electronics", "power", "circuits", "telecommunications", "technology"},
	},
	{
		ID:           "5",
		Name:         "Bachelor of Psychology",
		Description:  "Understand human behavior, cognition, and mental processes.",
		Faculty:      "Faculty of Social Sciences",
		Duration:     "4 years",
		MinimumScore: 2.7,
		RequiredTags: []string{"Biology"},
		Keywords:     []string{"psychology", "behavior", "mental", "counseling", "therapy", "social", "cognitive", "brain"},
	},
}
