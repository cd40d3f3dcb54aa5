package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var DB *mongo.Database

// Connect opens the MongoDB connection. dbName wins over a database name in
// the URI path; "tripjournal" is used when neither is set.
func Connect(mongoURI, dbName string) error {
	// Atlas connections can take a while to establish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURI)
	clientOptions.SetServerSelectionTimeout(10 * time.Second)

	logging.Info().Str("uri", MaskURI(mongoURI)).Msg("Connecting to MongoDB")
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return err
	}

	Client = client
	DB = client.Database(databaseName(mongoURI, dbName))

	logging.Info().Str("database", DB.Name()).Msg("Connected to MongoDB")
	return nil
}

func databaseName(mongoURI, configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	// mongodb://host/dbname?opts
	parts := strings.Split(mongoURI, "/")
	if len(parts) > 3 {
		if dbPart := strings.Split(parts[len(parts)-1], "?")[0]; dbPart != "" {
			return dbPart
		}
	}
	return "tripjournal"
}

// MaskURI hides the password of a connection string for logging.
func MaskURI(uri string) string {
	schemeEnd := strings.Index(uri, "://")
	at := strings.LastIndex(uri, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return uri
	}
	userInfo := uri[schemeEnd+3 : at]
	colon := strings.Index(userInfo, ":")
	if colon < 0 {
		return uri
	}
	return uri[:schemeEnd+3] + userInfo[:colon] + ":***" + uri[at:]
}

// PingMongo backs the mongo health check.
func PingMongo(ctx context.Context) error {
	if Client == nil {
		return errors.New("mongo not connected")
	}
	return Client.Ping(ctx, nil)
}

func Disconnect() error {
	if Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Client.Disconnect(ctx)
}
