package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoMigration "movez/internal/migrations/mongo"
	"movez/pkg/client"
	"movez/pkg/config"
	"movez/pkg/logger"
)

const (
	EnvMongoTestURI   = "MONGO_TEST_URI"
	ConnectionTimeout = 10 * time.Second
)

// ConnectMongo connects to MONGO_TEST_URI and returns a config pointing at a throwaway
// database that is dropped when the test ends. The test is skipped when the variable is unset.
func ConnectMongo(t *testing.T) *config.Config {
	t.Helper()
	uri := os.Getenv(EnvMongoTestURI)
	if uri == "" {
		t.Skip(EnvMongoTestURI + " not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	dbName := fmt.Sprintf("movez_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mc.Database(dbName).Drop(ctx); err != nil {
			t.Logf("warning: failed to drop %s: %v", dbName, err)
		}
		if err := mc.Disconnect(ctx); err != nil {
			t.Logf("warning: failed to disconnect from MongoDB: %v", err)
		}
	})

	return &config.Config{
		MongoDatabaseName: dbName,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		Currency:          "USD",
		RecentFeedLimit:   5,
		Log:               logger.Discard(),
		Client:            &client.Client{Mongo: mc},
	}
}

// MigratedMongo is ConnectMongo plus the collections, validators and indexes of the migration
// job. Multi-document transactions need the collections to exist up front and a replica set.
func MigratedMongo(t *testing.T) *config.Config {
	t.Helper()
	cfg := ConnectMongo(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return cfg
}

// RequireTransactions skips the test unless the server is a replica set member or a mongos,
// the deployments that support multi-document transactions.
func RequireTransactions(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	var hello bson.M
	err := cfg.Client.Mongo.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		t.Fatalf("hello command failed: %v", err)
	}
	if _, ok := hello["setName"]; ok {
		return
	}
	if msg, _ := hello["msg"].(string); msg == "isdbgrid" {
		return
	}
	t.Skip("MongoDB at " + EnvMongoTestURI + " is standalone; transactions need a replica set")
}
