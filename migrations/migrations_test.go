package migrations

import (
	"io/fs"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"marketplace/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate(FS))
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"init.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20240101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20240101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20240101000000_a.sql": {Data: []byte("-- +goose Up\n")},
		},
		"empty": {},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Validate(fsys))
		})
	}
}

// Every table gorm maps a model to must be created by some migration.
func TestMigrationsCoverModelTables(t *testing.T) {
	var all strings.Builder
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	for _, name := range names {
		raw, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		all.Write(raw)
	}

	namer := schema.NamingStrategy{}
	for _, model := range models.All() {
		var table string
		if tabler, ok := model.(schema.Tabler); ok {
			table = tabler.TableName()
		} else {
			table = namer.TableName(modelName(model))
		}
		assert.Contains(t, all.String(), "CREATE TABLE "+table+" (", table)
	}
}

func modelName(model any) string {
	return reflect.Indirect(reflect.ValueOf(model)).Type().Name()
}
