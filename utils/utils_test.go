package utils

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// Config loads lazily on first use and refuses to start without a secret.
	os.Setenv("JWT_SECRET", "utils-test-secret")
	os.Exit(m.Run())
}
