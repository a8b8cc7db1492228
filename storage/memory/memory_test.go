package memory

import (
	"testing"

	"github.com/dpup/grantkit/storage"
	"github.com/dpup/grantkit/storage/storagetests"
)

func TestMemoryStore(t *testing.T) {
	storagetests.Run(t, func() storage.Store {
		return New()
	})
}
