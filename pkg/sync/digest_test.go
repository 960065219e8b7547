package sync

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.xml", []byte("contents"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/b.xml", []byte("contents"), 0600))
	require.NoError(t, afero.WriteFile(fs, "/c.xml", []byte("other"), 0644))

	a, err := HashFile("/a.xml")
	require.NoError(t, err)
	b, err := HashFile("/b.xml")
	require.NoError(t, err)
	c, err := HashFile("/c.xml")
	require.NoError(t, err)

	// Only the contents matter.
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = HashFile("/missing.xml")
	assert.Error(t, err)
}

func TestDigestTableUpdate(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, idpXML, []byte("D1"), 0644))
	require.NoError(t, afero.WriteFile(fs, resolverXML, []byte("D2"), 0644))
	files := []WatchedFile{{Path: idpXML}, {Path: resolverXML}}

	table := DigestTable{}
	changed := table.Update(files)
	assert.Equal(t, []string{idpXML, resolverXML}, Paths(changed))
	assert.Equal(t, table[idpXML], changed[0].Digest)

	assert.Empty(t, table.Update(files))

	require.NoError(t, afero.WriteFile(fs, resolverXML, []byte("D2'"), 0644))
	assert.Equal(t, []string{resolverXML}, Paths(table.Update(files)))

	// Rewriting the same contents isn't a change.
	require.NoError(t, afero.WriteFile(fs, idpXML, []byte("D1"), 0644))
	assert.Empty(t, table.Update(files))
}

func TestDigestTablePrunes(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, idpXML, []byte("D1"), 0644))

	table := DigestTable{}
	table.Update([]WatchedFile{{Path: idpXML}})

	// The file vanished between the walk and the hash.
	require.NoError(t, fs.Remove(idpXML))
	assert.Empty(t, table.Update([]WatchedFile{{Path: idpXML}}))
	assert.Empty(t, table)

	// Recreating it with the same contents counts as new.
	require.NoError(t, afero.WriteFile(fs, idpXML, []byte("D1"), 0644))
	assert.Len(t, table.Update([]WatchedFile{{Path: idpXML}}), 1)
}

func TestDigestTableForget(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, idpXML, []byte("D1"), 0644))
	files := []WatchedFile{{Path: idpXML}}

	table := DigestTable{}
	table.Update(files)
	table.Forget(files)
	assert.Len(t, table.Update(files), 1)
}
