package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Selectors map the parts of a listing card onto CSS selectors.
type Selectors struct {
	Listing  string `yaml:"listing"`
	Title    string `yaml:"title"`
	Price    string `yaml:"price"`
	Link     string `yaml:"link"`
	Image    string `yaml:"image"`
	Location string `yaml:"location"`
}

// Site is one configured source of listings.
type Site struct {
	Name      string    `yaml:"name"`
	URL       string    `yaml:"url"`
	Selectors Selectors `yaml:"selectors"`
}

type sitesFile struct {
	Sources []Site `yaml:"sources"`
}

const (
	defaultImageSelector    = "img"
	defaultLocationSelector = `p[data-cy="listing-item-location"]`
)

// DefaultSites is used when no sources file exists.
func DefaultSites() []Site {
	return []Site{
		{
			Name: "Storia",
			URL: "https://www.storia.ro/ro/rezultate/vanzare/teren/iasi/tomesti/chicerea" +
				"?ownerTypeSingleSelect=ALL&distanceRadius=5&priceMax=33000&viewType=listing&by=LATEST&direction=DESC",
			Selectors: Selectors{
				Listing:  `article[data-cy="listing-item"]`,
				Title:    `p[data-cy="listing-item-title"]`,
				Price:    "span.css-2bt9f1",
				Link:     `a[data-cy="listing-item-link"]`,
				Image:    defaultImageSelector,
				Location: defaultLocationSelector,
			},
		},
	}
}

// LoadSites reads the YAML sources file at path. A missing file yields
// DefaultSites.
func LoadSites(path string) ([]Site, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSites(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read sources file %q: %w", path, err)
	}
	return ParseSites(raw)
}

// ParseSites decodes and validates a sources document.
func ParseSites(raw []byte) ([]Site, error) {
	var f sitesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("config: sources file defines no sources")
	}

	seen := make(map[string]string, len(f.Sources))
	for i := range f.Sources {
		s := &f.Sources[i]
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		if s.Selectors.Image == "" {
			s.Selectors.Image = defaultImageSelector
		}
		if s.Selectors.Location == "" {
			s.Selectors.Location = defaultLocationSelector
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("config: source #%d: %w", i+1, err)
		}
		if other, dup := seen[s.URL]; dup {
			return nil, fmt.Errorf("config: sources %q and %q share url %s", other, s.Name, s.URL)
		}
		seen[s.URL] = s.Name
	}
	return f.Sources, nil
}

func (s Site) validate() error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.URL == "":
		return errors.New("url is required")
	case s.Selectors.Listing == "":
		return errors.New("selectors.listing is required")
	case s.Selectors.Title == "":
		return errors.New("selectors.title is required")
	case s.Selectors.Price == "":
		return errors.New("selectors.price is required")
	case s.Selectors.Link == "":
		return errors.New("selectors.link is required")
	}
	return nil
}
