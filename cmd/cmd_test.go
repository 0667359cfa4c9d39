package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFederation = `
name = "site"

source "content" {
  kind = "sqlite"
  path = "content.db"
}

source "catalog" {
  kind = "json"
  path = "catalog.json"
  root = "$.content"
}

source "files" {
  kind = "dir"
  path = "files"
}

projection "content" {
  rules = ["/docs => /"]
}

projection "catalog" {
  rules = ["/catalog => /"]
}

projection "files" {
  rules = ["/files => /"]
}
`

func setupFederation(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("federation.hcl", testFederation)
	write("catalog.json", `{"content": {"owner": {"name": "ops"}}}`)
	write("files/a.txt", "alpha")
	write("files/sub/b.txt", "beta")
	return filepath.Join(dir, "federation.hcl")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	putCreate, treeDepth, verbose = false, 2, false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_Browse(t *testing.T) {
	conf := setupFederation(t)

	out, err := run(t, "ls", "-c", conf)
	require.NoError(t, err)
	assert.Equal(t, "docs\ncatalog\nfiles\n", out)

	out, err = run(t, "get", "/catalog/owner", "-c", conf)
	require.NoError(t, err)
	assert.Contains(t, out, "/catalog/owner")
	assert.Contains(t, out, "name=ops")

	out, err = run(t, "tree", "/files", "-d", "1", "-c", conf)
	require.NoError(t, err)
	assert.Equal(t, "files\n  a.txt\n  sub\n", out)

	out, err = run(t, "rules", "-c", conf)
	require.NoError(t, err)
	assert.Equal(t, "content:\n  /docs => /\ncatalog:\n  /catalog => /\nfiles:\n  /files => /\n", out)
}

func TestCLI_PutPersists(t *testing.T) {
	conf := setupFederation(t)

	out, err := run(t, "put", "/docs/page", "title=Hello", "tag=a", "tag=b", "--create", "-c", conf)
	require.NoError(t, err)
	assert.Contains(t, out, "/docs/page")

	out, err = run(t, "put", "/docs/page", "title=Changed", "tag", "-c", conf)
	require.NoError(t, err)
	assert.Contains(t, out, "/docs/page")

	out, err = run(t, "get", "/docs/page", "-c", conf)
	require.NoError(t, err)
	assert.Contains(t, out, "title=Changed")
	assert.NotContains(t, out, "tag=")

	_, err = run(t, "put", "/catalog/owner", "name=dev", "-c", conf)
	assert.Error(t, err, "json sources are read-only")
}

func TestCLI_Errors(t *testing.T) {
	conf := setupFederation(t)

	_, err := run(t, "get", "/docs/missing", "-c", conf)
	assert.Error(t, err)

	_, err = run(t, "ls", "-c", filepath.Join(t.TempDir(), "none.hcl"))
	assert.Error(t, err)

	_, err = run(t, "put", "/docs/x", "=oops", "-c", conf)
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	s := setupFederation(t)
	sess, err := openSession(s, logrus.StandardLogger())
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	props, err := parseAssignments(sess.graph.Context(), []string{"a=1", "b", "a=2"})
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "a", props[0].Name)
	assert.Equal(t, []string{"1", "2"}, props[0].Strings())
	assert.Equal(t, "b", props[1].Name)
	assert.Empty(t, props[1].Values)
}
