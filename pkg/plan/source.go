package plan

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type memorySource struct {
	plans map[Tier]Plan
}

// NewMemorySource returns a Source serving a deep copy of plans.
func NewMemorySource(plans ...Plan) Source {
	m := make(map[Tier]Plan, len(plans))
	for _, p := range plans {
		m[p.Tier] = p.clone()
	}
	return &memorySource{plans: m}
}

func (s *memorySource) Load(_ context.Context) (map[Tier]Plan, error) {
	out := make(map[Tier]Plan, len(s.plans))
	for t, p := range s.plans {
		out[t] = p.clone()
	}
	return out, nil
}

// fileDocument is the YAML layout of a plan file:
//
//	plans:
//	  free:
//	    name: Free
//	    features: []
//	    limits:
//	      snippets: 50
//	      team_members: 0
//	  pro:
//	    name: Pro
//	    features: [analytics, api_access]
//	    limits:
//	      snippets: unlimited
//	      team_members: 10
type fileDocument struct {
	Plans map[string]filePlan `yaml:"plans"`
}

type filePlan struct {
	Name     string               `yaml:"name"`
	Features []string             `yaml:"features"`
	Limits   map[string]fileLimit `yaml:"limits"`
}

type fileLimit Limit

func (l *fileLimit) UnmarshalYAML(n *yaml.Node) error {
	if n.Value == "unlimited" {
		*l = fileLimit(Unlimited)
		return nil
	}
	var v int64
	if err := n.Decode(&v); err != nil {
		return fmt.Errorf("limit must be an integer or \"unlimited\": %w", err)
	}
	*l = fileLimit(v)
	return nil
}

// FileSource loads plans from a YAML file.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source reading the YAML file at path.
func NewFileSource(path string) FileSource {
	return FileSource{Path: path}
}

func (s FileSource) Load(_ context.Context) (map[Tier]Plan, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(raw)
}

// ParseYAML decodes a plan document. Names are validated against the closed
// tier, feature and resource sets.
func ParseYAML(raw []byte) (map[Tier]Plan, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}

	plans := make(map[Tier]Plan, len(doc.Plans))
	for name, fp := range doc.Plans {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, errors.Join(ErrInvalidPlanConfiguration, err, fmt.Errorf("tier %q", name))
		}

		p := Plan{
			Tier:     tier,
			Name:     fp.Name,
			Features: make([]Feature, 0, len(fp.Features)),
			Limits:   make(map[Resource]Limit, len(fp.Limits)),
		}
		for _, fname := range fp.Features {
			f, err := ParseFeature(fname)
			if err != nil {
				return nil, errors.Join(ErrInvalidPlanConfiguration, err, fmt.Errorf("feature %q", fname))
			}
			p.Features = append(p.Features, f)
		}
		for rname, l := range fp.Limits {
			res := Resource(rname)
			if !res.Valid() {
				return nil, errors.Join(ErrInvalidPlanConfiguration, ErrUnknownResource, fmt.Errorf("resource %q", rname))
			}
			p.Limits[res] = Limit(l)
		}
		plans[tier] = p
	}

	return plans, nil
}
