package badger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mschuler/nwebdav/pkg/lock"
	lockbadger "github.com/mschuler/nwebdav/pkg/lock/badger"
	locktesting "github.com/mschuler/nwebdav/pkg/lock/testing"
)

func TestManagerConformance(t *testing.T) {
	suite := &locktesting.ManagerTestSuite{
		NewManager: func(t *testing.T) lock.Manager {
			m, err := lockbadger.New(context.Background(), lockbadger.Config{
				DBPath: t.TempDir(),
			})
			require.NoError(t, err)
			return m
		},
	}
	suite.Run(t)
}
