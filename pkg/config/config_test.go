package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir, err := ioutil.TempDir("", "revbot-config")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "revbot.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "root@tcp(localhost:3306)/revbot"
exchange:
  simulated: true
telegram:
  chatId: -1001234567890
server:
  bind: ":9090"
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", c.Database.Driver)
	assert.Equal(t, "root@tcp(localhost:3306)/revbot", c.Database.DSN)
	assert.True(t, c.Exchange.Simulated)
	assert.Equal(t, int64(-1001234567890), c.Telegram.ChatID)
	assert.Equal(t, ":9090", c.Server.Bind)
	assert.Equal(t, "@every 1m", c.Reconcile.Schedule, "reconcile schedule defaults")
}

func TestLoadRequiresDSN(t *testing.T) {
	path := writeConfig(t, `
server:
  bind: ":9090"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite3
  dsn: "file:revbot.sqlite3"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
