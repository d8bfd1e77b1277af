package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects who controls each side of the board.
type Mode string

const (
	ModeLocal  Mode = "local"  // both colors on this client
	ModeEngine Mode = "engine" // human vs the server's automated opponent
	ModeLAN    Mode = "lan"    // networked peer play
)

type AppConfig struct {
	ServerURL string
	Mode      Mode
	// HumanColor is the side the human controls in engine and LAN modes
	// ("white" or "black"). Ignored in local mode.
	HumanColor string

	DiscoveryPort    int
	AnnounceInterval time.Duration
	BrowsePoll       time.Duration
	TurnPoll         time.Duration

	SnapshotDir string
	UserFile    string
	PlayerName  string
}

// Load reads configuration from the environment. Only the server URL is
// required; everything else has a default suitable for a LAN session.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Mode:             ModeLocal,
		HumanColor:       "white",
		DiscoveryPort:    47810,
		AnnounceInterval: 2 * time.Second,
		BrowsePoll:       time.Second,
		TurnPoll:         500 * time.Millisecond,
		SnapshotDir:      "snapshots",
		UserFile:         filepath.Join(".lanchess", "user.yaml"),
		PlayerName:       "player",
	}

	cfg.ServerURL = strings.TrimSpace(os.Getenv("CHESS_SERVER_URL"))

	if v := strings.TrimSpace(os.Getenv("CHESS_MODE")); v != "" {
		switch Mode(strings.ToLower(v)) {
		case ModeLocal, ModeEngine, ModeLAN:
			cfg.Mode = Mode(strings.ToLower(v))
		default:
			return nil, fmt.Errorf("unknown CHESS_MODE %q", v)
		}
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("CHESS_COLOR"))); v != "" {
		switch v {
		case "white", "w":
			cfg.HumanColor = "white"
		case "black", "b":
			cfg.HumanColor = "black"
		default:
			return nil, fmt.Errorf("unknown CHESS_COLOR %q", v)
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_DISCOVERY_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 65536 {
			cfg.DiscoveryPort = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_ANNOUNCE_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AnnounceInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_BROWSE_POLL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.BrowsePoll = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_TURN_POLL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TurnPoll = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_SNAPSHOT_DIR")); v != "" {
		cfg.SnapshotDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_USER_FILE")); v != "" {
		cfg.UserFile = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_PLAYER_NAME")); v != "" {
		cfg.PlayerName = v
	}

	if cfg.ServerURL == "" {
		return nil, errors.New("CHESS_SERVER_URL is required")
	}
	return cfg, nil
}

// JoinRecord remembers the last joined LAN session so a restart can rejoin
// the same host without rediscovery.
type JoinRecord struct {
	SessionID string `yaml:"session_id"`
	HostURL   string `yaml:"host_url"`
	Color     string `yaml:"color"`
}

// UserFile is the small per-user state persisted between runs.
type UserFile struct {
	PlayerName string      `yaml:"player_name,omitempty"`
	LastJoin   *JoinRecord `yaml:"last_join,omitempty"`
}

// LoadUserFile reads the persisted user state. A missing file is not an
// error; it simply yields an empty state.
func LoadUserFile(path string) (*UserFile, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &UserFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user file: %w", err)
	}
	var uf UserFile
	if err := yaml.Unmarshal(raw, &uf); err != nil {
		return nil, fmt.Errorf("parse user file: %w", err)
	}
	return &uf, nil
}

// SaveUserFile writes the user state, creating the parent directory as needed.
func SaveUserFile(path string, uf *UserFile) error {
	if uf == nil {
		return errors.New("nil user file")
	}
	raw, err := yaml.Marshal(uf)
	if err != nil {
		return fmt.Errorf("marshal user file: %w", err)
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create user dir: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write user file: %w", err)
	}
	return nil
}
