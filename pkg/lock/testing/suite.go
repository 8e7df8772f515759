// Package testing provides a conformance test suite for lock.Manager
// implementations.
//
// The suite tests the interface contract, not implementation details,
// making it reusable across implementations (memory, badger, ...). Each
// implementation package runs it from its own _test.go file:
//
//	func TestManagerConformance(t *testing.T) {
//	    suite := &locktesting.ManagerTestSuite{
//	        NewManager: func(t *testing.T) lock.Manager { return memory.New() },
//	    }
//	    suite.Run(t)
//	}
package testing

import (
	"testing"

	"github.com/mschuler/nwebdav/pkg/lock"
)

// ManagerTestSuite is a conformance test suite for lock.Manager
// implementations.
type ManagerTestSuite struct {
	// NewManager is a factory that creates a fresh Manager for each
	// test. This ensures test isolation. The suite closes the manager
	// via t.Cleanup.
	NewManager func(t *testing.T) lock.Manager
}

// Run executes all tests in the suite.
func (suite *ManagerTestSuite) Run(test *testing.T) {
	test.Run("Grant", suite.RunGrantTests)
	test.Run("Conflict", suite.RunConflictTests)
	test.Run("Refresh", suite.RunRefreshTests)
	test.Run("Unlock", suite.RunUnlockTests)
	test.Run("Expiry", suite.RunExpiryTests)
	test.Run("Discovery", suite.RunDiscoveryTests)
}

// newManager creates a fresh manager and registers its cleanup.
func (suite *ManagerTestSuite) newManager(t *testing.T) lock.Manager {
	t.Helper()
	m := suite.NewManager(t)
	t.Cleanup(func() { _ = m.Close() })
	return m
}
