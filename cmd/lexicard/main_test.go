package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `entries:
  - lemma: affect
    pos: verb
    senses:
      - definition: to have an influence on
  - lemma: alter
    pos: verb
    senses:
      - definition: to change slightly
  - lemma: adjust
    pos: verb
    senses:
      - definition: to alter to fit
  - lemma: modify
    pos: verb
    senses:
      - definition: to make partial changes to
`

func setup(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	catDir := filepath.Join(dir, "catalog")
	require.NoError(t, os.MkdirAll(catDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "words.yaml"), []byte(testCatalog), 0o644))
	return []string{
		"--database.path", filepath.Join(dir, "test.db"),
		"--catalog.path", catDir,
		"--log.level", "error",
	}
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func TestUsage(t *testing.T) {
	out, err := runCmd(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "usage: lexicard")

	_, err = runCmd(t, "", "teleport")
	assert.ErrorContains(t, err, "unknown command")
}

func TestQuizThenStatsAndMigrate(t *testing.T) {
	flags := setup(t)

	// Answer "A" to everything; abandoning on EOF is fine too.
	out, err := runCmd(t, strings.Repeat("A\n", 10), append([]string{"quiz", "--quiz.size", "2", "--quiz.new_cards", "4"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "Done:")

	out, err = runCmd(t, "", append([]string{"stats"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "new:")

	out, err = runCmd(t, "", append([]string{"migrate"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 4 cards: 0 migrated (0 merged), 0 orphaned deleted.")
}

func TestSyncRequiresBackend(t *testing.T) {
	_, err := runCmd(t, "", append([]string{"sync"}, setup(t)...)...)
	assert.ErrorContains(t, err, "sync is not configured")
}

func TestSyncToDirectory(t *testing.T) {
	flags := setup(t)
	remote := t.TempDir()
	flags = append(flags, "--sync.backend", "file", "--sync.dir", remote)

	out, err := runCmd(t, "", append([]string{"sync"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Sync pushed")

	_, err = os.Stat(filepath.Join(remote, "lexicard", "default", "snapshot.bin"))
	assert.NoError(t, err)
}
