package startup

import (
	"context"
	"time"

	"github.com/pawsafe/internal/storage/mongo"
)

// ConnectMongoWithRetry подключается к MongoDB с повторами (ping входит в mongo.Connect).
func ConnectMongoWithRetry(uri, database string, maxWait time.Duration, logPrefix string) *mongo.Store {
	var store *mongo.Store
	retry(maxWait, logPrefix+"mongo", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := mongo.Connect(ctx, uri, database)
		if err != nil {
			return err
		}
		store = s
		return nil
	})
	return store
}
