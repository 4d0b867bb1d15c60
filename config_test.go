package satp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func validConfig() Config {
	return Config{
		Role:          "left",
		MasterKeyHex:  s1MasterKeyHex,
		MasterSaltHex: s1MasterSaltHex,
		TagLen:        intp(10),
		SenderID:      intp(1),
		Routes: []RouteEntry{
			{PrefixHex: "0a000000", PrefixLen: 8, Mux: 1},
		},
	}
}

func TestConfigValidateAccepts(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateRejectsBadRole(t *testing.T) {
	cfg := validConfig()
	cfg.Role = "up"
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsBadHex(t *testing.T) {
	cfg := validConfig()
	cfg.MasterKeyHex = "not-hex"
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateRequiresTagLenAndSenderID(t *testing.T) {
	cfg := validConfig()
	cfg.TagLen = nil
	assert.Error(t, cfg.Validate())

	cfg2 := validConfig()
	cfg2.SenderID = nil
	assert.Error(t, cfg2.Validate())
}

func TestConfigValidateRejectsOutOfRangeRoute(t *testing.T) {
	cfg := validConfig()
	cfg.Routes = []RouteEntry{{PrefixHex: "0a00", PrefixLen: 100, Mux: 1}}
	assert.Error(t, cfg.Validate())
}

func TestConfigRoleValue(t *testing.T) {
	left := validConfig()
	assert.Equal(t, RoleLeft, left.RoleValue())

	right := validConfig()
	right.Role = "right"
	assert.Equal(t, RoleRight, right.RoleValue())
}

func TestConfigBuildRoutingTree(t *testing.T) {
	cfg := validConfig()
	tree, err := cfg.BuildRoutingTree()
	require.NoError(t, err)

	mux, err := tree.Lookup(ipv4(10, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), mux)
}

func TestLoadConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "satp.yaml")
	contents := `
role: left
master_key_hex: "0123456789ABCDEF0123456789ABCDEF"
master_salt_hex: "0102030405060708090A0B0C0D0E"
tag_len: 10
sender_id: 1
routes:
  - prefix_hex: "0a000000"
    prefix_len: 8
    mux: 1
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "left", cfg.Role)
	assert.Equal(t, 10, *cfg.TagLen)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, 8, cfg.Routes[0].PrefixLen)

	key, err := cfg.MasterKey()
	require.NoError(t, err)
	assert.Len(t, key, 16)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "satp.yaml")
	contents := `
role: left
master_key_hex: "0123456789ABCDEF0123456789ABCDEF"
master_salt_hex: "0102030405060708090A0B0C0D0E"
tag_len: 10
sender_id: 1
bogus_field: true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "satp.yaml")
	contents := `
role: sideways
master_key_hex: "0123456789ABCDEF0123456789ABCDEF"
master_salt_hex: "0102030405060708090A0B0C0D0E"
tag_len: 10
sender_id: 1
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
