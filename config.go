package satp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of the material a Connection needs:
// master key/salt, role, tag length, this endpoint's sender id, and
// its static routes. It carries no cipher key length. It is a typed value,
// not a CLI; flag parsing and daemon bootstrapping stay external
// collaborators per spec.md §1/§6, same as nfctools' sdmconfig keeps
// its YAML config separate from its own flag.Parse() call in main.
type Config struct {
	Role         string       `yaml:"role"`
	MasterKeyHex string       `yaml:"master_key_hex"`
	MasterSaltHex string      `yaml:"master_salt_hex"`
	TagLen       *int         `yaml:"tag_len"`
	SenderID     *int         `yaml:"sender_id"`
	Routes       []RouteEntry `yaml:"routes"`
}

// RouteEntry is one static routing table row, spec.md §4.5/§8 S3.
type RouteEntry struct {
	PrefixHex string `yaml:"prefix_hex"`
	PrefixLen int    `yaml:"prefix_len"`
	Mux       int    `yaml:"mux"`
}

// LoadConfig reads and validates a Config from path.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("satp: read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("satp: parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config is self-consistent without touching the
// filesystem or network.
func (c *Config) Validate() error {
	switch c.Role {
	case "left", "right":
	default:
		return fmt.Errorf("satp: config.role must be \"left\" or \"right\", got %q", c.Role)
	}
	if _, err := hex.DecodeString(c.MasterKeyHex); err != nil {
		return fmt.Errorf("satp: config.master_key_hex: %w", err)
	}
	if _, err := hex.DecodeString(c.MasterSaltHex); err != nil {
		return fmt.Errorf("satp: config.master_salt_hex: %w", err)
	}
	if c.TagLen == nil {
		return fmt.Errorf("satp: config.tag_len is required")
	}
	if *c.TagLen < 0 {
		return fmt.Errorf("satp: config.tag_len must be >= 0")
	}
	if c.SenderID == nil {
		return fmt.Errorf("satp: config.sender_id is required")
	}
	if *c.SenderID < 0 || *c.SenderID > 0xFFFF {
		return fmt.Errorf("satp: config.sender_id must be 0..65535")
	}
	for i, r := range c.Routes {
		prefix, err := hex.DecodeString(r.PrefixHex)
		if err != nil {
			return fmt.Errorf("satp: config.routes[%d].prefix_hex: %w", i, err)
		}
		if r.PrefixLen < 0 || r.PrefixLen > len(prefix)*8 {
			return fmt.Errorf("satp: config.routes[%d].prefix_len %d out of range for %d-byte prefix", i, r.PrefixLen, len(prefix))
		}
		if r.Mux < 0 || r.Mux > 0xFFFF {
			return fmt.Errorf("satp: config.routes[%d].mux must be 0..65535", i)
		}
	}
	return nil
}

// RoleValue parses Role into the Role type.
func (c *Config) RoleValue() Role {
	if c.Role == "right" {
		return RoleRight
	}
	return RoleLeft
}

// MasterKey decodes the hex-encoded master key.
func (c *Config) MasterKey() ([]byte, error) {
	return hex.DecodeString(c.MasterKeyHex)
}

// MasterSalt decodes the hex-encoded master salt.
func (c *Config) MasterSalt() ([]byte, error) {
	return hex.DecodeString(c.MasterSaltHex)
}

// BuildRoutingTree inserts every configured route into a fresh tree.
func (c *Config) BuildRoutingTree() (*RoutingTree, error) {
	tree := NewRoutingTree()
	for i, r := range c.Routes {
		prefix, err := hex.DecodeString(r.PrefixHex)
		if err != nil {
			return nil, fmt.Errorf("satp: config.routes[%d]: %w", i, err)
		}
		if err := tree.Insert(prefix, r.PrefixLen, uint16(r.Mux)); err != nil {
			return nil, fmt.Errorf("satp: config.routes[%d]: %w", i, err)
		}
	}
	return tree, nil
}
