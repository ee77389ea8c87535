package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditEventsWritten(t *testing.T) {
	tempDir := t.TempDir()
	writeTestConfig(t, tempDir, `{"logging": {"level": "debug", "debug_mode": true}}`)

	resetLoggingState()
	require.NoError(t, Initialize(tempDir))
	require.NoError(t, InitAudit())

	audit := Audit()
	audit.IndexStart("/repo/app/code")
	audit.IndexFile("/repo/app/code/Vendor/Module/Plugin.php", true, "")
	audit.IndexComplete("/repo/app/code", 42, 1500)
	audit.SearchQuery("find the checkout plugin", 10)
	audit.SearchComplete("find the checkout plugin", 5, 12)
	audit.SonaFeedback("find the checkout plugin", "Vendor/Module/Plugin/Checkout.php", true)
	audit.WatcherCycle(3, 1, 0, 200)

	CloseAudit()

	entries, err := os.ReadDir(filepath.Join(tempDir, ".semsearch", "logs"))
	require.NoError(t, err)

	found := false
	for _, e := range entries {
		if containsAuditSuffix(e.Name()) {
			found = true
		}
	}
	assert.True(t, found, "expected an audit log file to be created")
}

func containsAuditSuffix(name string) bool {
	return len(name) > 10 && name[len(name)-10:] == "_audit.log"
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, `hello \"world\"`, escapeString(`hello "world"`))
	assert.Equal(t, `line1\nline2`, escapeString("line1\nline2"))
	assert.Equal(t, `back\\slash`, escapeString(`back\slash`))
}
