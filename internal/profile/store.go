// Package profile is the file-backed player profile store: one JSON
// document per profile plus avatar files, all under a configurable
// data directory. Rooms are memory only; this is the only state that
// survives a restart.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("profile not found")

type RoleStats struct {
	Werewolf int `json:"werewolf"`
	God      int `json:"god"`
	Villager int `json:"villager"`
}

type Stats struct {
	GamesPlayed int       `json:"games_played"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Roles       RoleStats `json:"roles"`
}

type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Stats     Stats  `json:"stats"`
}

// Store reads and writes profiles under <dataDir>/players and avatars
// under <dataDir>/avatars. A single mutex serializes writers; profile
// traffic is light enough that finer locking buys nothing.
type Store struct {
	mu        sync.Mutex
	playerDir string
	avatarDir string
}

func NewStore(dataDir string) (*Store, error) {
	s := &Store{
		playerDir: filepath.Join(dataDir, "players"),
		avatarDir: filepath.Join(dataDir, "avatars"),
	}
	for _, dir := range []string{s.playerDir, s.avatarDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating profile directory: %w", err)
		}
	}
	return s, nil
}

// AvatarDir exposes the avatar directory for the static file mount.
func (s *Store) AvatarDir() string { return s.avatarDir }

// Create makes a new profile with a fresh id.
func (s *Store) Create(name string) (*Profile, error) {
	p := &Profile{
		ID:   uuid.NewString(),
		Name: name,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads one profile.
func (s *Store) Get(id string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(id)
}

// SaveAvatar stores the image bytes under the profile id and records
// the served URL on the profile.
func (s *Store) SaveAvatar(id string, ext string, data []byte) (*Profile, error) {
	ext = strings.ToLower(ext)
	if ext == "" || !strings.HasPrefix(ext, ".") {
		ext = ".png"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.readLocked(id)
	if err != nil {
		return nil, err
	}
	filename := id + ext
	if err := os.WriteFile(filepath.Join(s.avatarDir, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing avatar: %w", err)
	}
	p.AvatarURL = "/data/avatars/" + filename
	if err := s.writeLocked(p); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordResult bumps a profile's win/loss and role-class counters.
// Called by the game layer at game over, never under a room lock.
// A result for a profile that no longer exists is dropped silently.
func (s *Store) RecordResult(profileID string, won bool, roleClass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.readLocked(profileID)
	if err != nil {
		return
	}
	p.Stats.GamesPlayed++
	if won {
		p.Stats.Wins++
	} else {
		p.Stats.Losses++
	}
	switch roleClass {
	case "werewolf":
		p.Stats.Roles.Werewolf++
	case "god":
		p.Stats.Roles.God++
	default:
		p.Stats.Roles.Villager++
	}
	_ = s.writeLocked(p)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.playerDir, id+".json")
}

func (s *Store) readLocked(id string) (*Profile, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading profile %s: %w", id, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) writeLocked(p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", p.ID, err)
	}
	if err := os.WriteFile(s.path(p.ID), data, 0o644); err != nil {
		return fmt.Errorf("writing profile %s: %w", p.ID, err)
	}
	return nil
}
