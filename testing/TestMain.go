package testing

import (
	"os"
	"path/filepath"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("STARTER_TEST_MODE", "1")
		if os.Getenv("DATABASE_URL") == "" {
			_ = os.Setenv("DATABASE_URL", "bolt://"+filepath.Join(os.TempDir(), "starter-test.db"))
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
