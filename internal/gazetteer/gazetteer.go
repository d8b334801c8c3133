// Package gazetteer provides reference coordinates for known barangays.
package gazetteer

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/bayanihan-data/povassess/types"
)

//go:embed barangays.yaml
var defaultData []byte

type file struct {
	Municipality string  `yaml:"municipality"`
	Barangays    []entry `yaml:"barangays"`
}

type entry struct {
	Name string  `yaml:"name"`
	Lng  float64 `yaml:"lng"`
	Lat  float64 `yaml:"lat"`
}

// Gazetteer maps exact barangay names to coordinates.
type Gazetteer struct {
	municipality string
	points       map[string]types.GeoPoint
}

// Default returns the gazetteer compiled into the binary.
func Default() (*Gazetteer, error) {
	return Parse(defaultData)
}

// Parse builds a gazetteer from YAML.
func Parse(data []byte) (*Gazetteer, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}
	g := &Gazetteer{
		municipality: f.Municipality,
		points:       make(map[string]types.GeoPoint, len(f.Barangays)),
	}
	for _, b := range f.Barangays {
		if b.Name == "" {
			return nil, fmt.Errorf("parse gazetteer: entry without name")
		}
		if _, dup := g.points[b.Name]; dup {
			return nil, fmt.Errorf("parse gazetteer: duplicate entry %q", b.Name)
		}
		g.points[b.Name] = types.NewGeoPoint(b.Lng, b.Lat)
	}
	return g, nil
}

// Lookup returns the coordinate for name. Matching is exact.
func (g *Gazetteer) Lookup(name string) (types.GeoPoint, bool) {
	if g == nil {
		return types.GeoPoint{}, false
	}
	p, ok := g.points[name]
	return p, ok
}

// Municipality returns the municipality the entries belong to.
func (g *Gazetteer) Municipality() string {
	if g == nil {
		return ""
	}
	return g.municipality
}

// Len returns the number of entries.
func (g *Gazetteer) Len() int {
	if g == nil {
		return 0
	}
	return len(g.points)
}
