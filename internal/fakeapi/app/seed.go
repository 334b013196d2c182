package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/backoffice/internal/fakeapi"
)

// Seed is the startup data of the fake backend.
type Seed struct {
	Users []SeedUser  `yaml:"users"`
	Cache []SeedEntry `yaml:"cache"`
}

type SeedUser struct {
	Email        string `yaml:"email"`
	Username     string `yaml:"username"`
	DisplayName  string `yaml:"displayName"`
	Password     string `yaml:"password"`
	Role         string `yaml:"role"`
	MustSetup2FA bool   `yaml:"mustSetup2FA"`
}

type SeedEntry struct {
	Key   string        `yaml:"key"`
	Value any           `yaml:"value"`
	TTL   time.Duration `yaml:"ttl"`
}

// DefaultSeed is loaded when no seed file is configured.
func DefaultSeed() Seed {
	return Seed{
		Users: []SeedUser{
			{Email: "admin@example.com", Username: "admin", DisplayName: "Admin", Password: "admin-password", Role: "admin"},
			{Email: "new@example.com", Username: "newhire", DisplayName: "New Hire", Password: "newhire-password", Role: "support", MustSetup2FA: true},
		},
		Cache: []SeedEntry{
			{Key: "session:demo", Value: map[string]any{"userId": "demo", "ip": "10.0.0.7"}, TTL: time.Hour},
			{Key: "game:lobby/main", Value: "open"},
			{Key: "ratelimit:login:10.0.0.7", Value: 3, TTL: 5 * time.Minute},
		},
	}
}

func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

// Apply loads the seed into svc.
func (s Seed) Apply(svc *fakeapi.Service) error {
	for _, u := range s.Users {
		if _, err := svc.AddUser(fakeapi.NewUser{
			Email:        u.Email,
			Username:     u.Username,
			DisplayName:  u.DisplayName,
			Password:     u.Password,
			Role:         u.Role,
			MustSetup2FA: u.MustSetup2FA,
		}); err != nil {
			return fmt.Errorf("seed user %q: %w", u.Email, err)
		}
	}
	for _, e := range s.Cache {
		if e.Key == "" {
			return fmt.Errorf("seed cache entry: empty key")
		}
		svc.SetCache(e.Key, e.Value, e.TTL)
	}
	return nil
}
