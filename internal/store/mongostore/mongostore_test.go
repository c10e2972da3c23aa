package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"noteboard/internal/store"
	"noteboard/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

// Requires a replica set, e.g. MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		database := fmt.Sprintf("noteboard_test_%d", time.Now().UnixNano())
		s, err := New(ctx, uri, database)
		require.NoError(t, err)
		t.Cleanup(func() {
			s.client.Database(database).Drop(context.Background())
			s.Close()
		})
		return s
	})
}
