package mgo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pwhiting/Translate/data/database/mgo/mongoutil"
	"github.com/pwhiting/Translate/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MongoManager owns the process's Mongo client. The driver reconnects on its
// own; the manager only pings periodically so /health can report the outcome.
type MongoManager struct {
	mu     sync.RWMutex
	client *mongoutil.Client

	healthy atomic.Bool
	lastErr atomic.Value // error
}

// Connect dials with the retry policy of mongoutil and returns a ready manager.
func Connect(ctx context.Context, cfg *mongoutil.Config) (*MongoManager, error) {
	cli, err := mongoutil.NewMongoDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m := &MongoManager{client: cli}
	m.healthy.Store(true)
	return m, nil
}

// Watch pings every interval until ctx is done; three failures in a row mark
// the manager unhealthy, one success marks it healthy again.
func (m *MongoManager) Watch(ctx context.Context, every time.Duration) {
	const failThresh = 3
	if every <= 0 {
		every = 10 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	fail := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := m.GetDB().Client().Ping(pctx, nil)
			cancel()
			if err != nil {
				fail++
				m.lastErr.Store(err)
				if fail >= failThresh && m.healthy.Swap(false) {
					logger.Warn("mongo unhealthy", zap.Error(err))
				}
				continue
			}
			fail = 0
			if !m.healthy.Swap(true) {
				logger.Info("mongo healthy again")
			}
		}
	}
}

func (m *MongoManager) Healthy() bool {
	return m.healthy.Load()
}

// Err returns the last ping error.
func (m *MongoManager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (m *MongoManager) GetDB() *mongo.Database {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client.GetDB()
}

func (m *MongoManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}
