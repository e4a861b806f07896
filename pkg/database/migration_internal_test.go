package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"postgres/000001_create_contacts.up.sql":   {Data: []byte("")},
		"postgres/000001_create_contacts.down.sql": {Data: []byte("")},
		"postgres/000012_add_index.up.sql":         {Data: []byte("")},
		"postgres/000003_other.up.sql":             {Data: []byte("")},
		"postgres/README.md":                       {Data: []byte("")},
	}

	version, err := latestVersion(fsys, "postgres")
	require.NoError(t, err)
	assert.Equal(t, 12, version)

	_, err = latestVersion(fstest.MapFS{"sqlite/notes.txt": {Data: []byte("")}}, "sqlite")
	assert.Error(t, err)
}
