package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_HCL(t *testing.T) {
	path := writeFile(t, "federation.hcl", `
cache {
  time_to_cache  = "30s"
  time_to_expire = "5m"
}

source "content" {
  kind = "sqlite"
  path = "content.db"
}

source "scratch" {
  kind        = "memory"
  retry_limit = 2
}

projection "content" {
  rules = ["/docs => /", "/archive => /old $ /old/tmp"]
}

projection "scratch" {
  rules = ["/tmp => /"]
}
`)
	f, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "fedgraph", f.Name)
	require.Len(t, f.Sources, 2)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "content.db"), f.Sources[0].Path)
	assert.Equal(t, KindMemory, f.Sources[1].Kind)
	assert.Equal(t, 2, f.Sources[1].RetryLimit)

	require.Len(t, f.Projections, 2)
	assert.Equal(t, "content", f.Projections[0].Source)
	assert.Equal(t, []string{"/docs => /", "/archive => /old $ /old/tmp"}, f.Projections[0].Rules)

	toCache, toExpire, err := f.Cache.Durations()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, toCache)
	assert.Equal(t, 5*time.Minute, toExpire)
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "federation.json", `{
  "name": "site",
  "source": {"catalog": {"kind": "json", "path": "/srv/catalog.json", "root": "$.content"}},
  "projection": {"catalog": {"rules": ["/catalog => /"]}}
}`)
	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "site", f.Name)
	require.Len(t, f.Sources, 1)
	assert.Equal(t, "/srv/catalog.json", f.Sources[0].Path, "absolute paths are kept")
	assert.Equal(t, "$.content", f.Sources[0].Root)
	assert.Nil(t, f.Cache)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		fed  Federation
		want string
	}{
		{
			name: "unknown kind",
			fed:  Federation{Sources: []Source{{Name: "a", Kind: "ftp"}}},
			want: `unknown kind "ftp"`,
		},
		{
			name: "missing path",
			fed:  Federation{Sources: []Source{{Name: "a", Kind: KindDir}}},
			want: "needs a path",
		},
		{
			name: "duplicate source",
			fed:  Federation{Sources: []Source{{Name: "a", Kind: KindMemory}, {Name: "a", Kind: KindMemory}}},
			want: "declared twice",
		},
		{
			name: "undeclared source",
			fed:  Federation{Projections: []Projection{{Source: "ghost", Rules: []string{"/ => /"}}}},
			want: `undeclared source "ghost"`,
		},
		{
			name: "bad duration",
			fed:  Federation{Cache: &Cache{TimeToExpire: "soon"}},
			want: "time_to_expire",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fed.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	ok := Federation{
		Sources:     []Source{{Name: "a", Kind: KindMemory}},
		Projections: []Projection{{Source: "a"}},
	}
	assert.NoError(t, ok.Validate())
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)

	path := writeFile(t, "federation.hcl", `projection "nobody" { rules = [] }`)
	_, err = LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared source")
}
