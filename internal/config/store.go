package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wpsync/wpsync/internal/utils"
)

var ErrSiteNotFound = errors.New("site not found")

// sitesFile is the on-disk shape of sites.yaml.
type sitesFile struct {
	Sites []*SiteProfile `yaml:"sites"`
}

// Store persists site profiles in a single YAML file. Every mutation is
// a full read-modify-write; the file is small and edited rarely.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// List returns all profiles. A missing file is an empty list, not an
// error.
func (s *Store) List() ([]*SiteProfile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var file sitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return file.Sites, nil
}

// Get looks a profile up by ID or by name.
func (s *Store) Get(idOrName string) (*SiteProfile, error) {
	sites, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, site := range sites {
		if site.ID == idOrName || site.Name == idOrName {
			return site, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, idOrName)
}

// Upsert validates the profile and writes it back, replacing any
// existing profile with the same ID.
func (s *Store) Upsert(profile *SiteProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	sites, err := s.List()
	if err != nil {
		return err
	}

	profile.UpdatedAt = time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = profile.UpdatedAt
	}

	replaced := false
	for i, site := range sites {
		if site.ID == profile.ID {
			sites[i] = profile
			replaced = true
			break
		}
		if site.Name == profile.Name && site.ID != profile.ID {
			return fmt.Errorf("site name %q already in use", profile.Name)
		}
	}
	if !replaced {
		sites = append(sites, profile)
	}

	return s.write(sites)
}

// Remove deletes a profile by ID or name.
func (s *Store) Remove(idOrName string) error {
	sites, err := s.List()
	if err != nil {
		return err
	}

	for i, site := range sites {
		if site.ID == idOrName || site.Name == idOrName {
			sites = append(sites[:i], sites[i+1:]...)
			return s.write(sites)
		}
	}
	return fmt.Errorf("%w: %s", ErrSiteNotFound, idOrName)
}

func (s *Store) write(sites []*SiteProfile) error {
	if err := utils.EnsureParent(s.path); err != nil {
		return err
	}

	data, err := yaml.Marshal(&sitesFile{Sites: sites})
	if err != nil {
		return err
	}

	// Profiles hold hostnames and usernames; keep the file private.
	return os.WriteFile(s.path, data, 0o600)
}
