package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrate_RequiresSchema(t *testing.T) {
	_, err := execute("up")
	assert.ErrorContains(t, err, `required flag(s) "schema" not set`)
}

func TestMigrate_UnknownSchema(t *testing.T) {
	_, err := execute("status", "--schema", "billing", "--dsn", "postgres://x@localhost/db")
	assert.ErrorContains(t, err, `unknown schema "billing"`)
}

func TestMigrate_RejectsMemoryStore(t *testing.T) {
	_, err := execute("up", "--schema", "lending", "--dsn", "memory")
	assert.ErrorContains(t, err, "no database URL for schema lending")
}

func TestMigrate_DefaultDSNFromEnv(t *testing.T) {
	t.Setenv("AUTHORITY_DB_URL", "postgres://a@localhost/authority")
	t.Setenv("LENDING_DB_URL", "postgres://l@localhost/lending")
	assert.Equal(t, "postgres://a@localhost/authority", defaultDSN("authority"))
	assert.Equal(t, "postgres://l@localhost/lending", defaultDSN("lending"))
}

func TestMigrate_UnknownSubcommand(t *testing.T) {
	_, err := execute("sideways", "--schema", "lending")
	assert.Error(t, err)
}
