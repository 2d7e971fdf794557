// Package store persists packet documents behind a backend-neutral Repository.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/database"
	log "github.com/sirupsen/logrus"
)

// Supported storage drivers
const (
	DriverMongoDB = "mongodb"
	DriverSQLite  = "sqlite3"
	DriverMySQL   = "mysql"
	DriverMemory  = "memory"
)

var (
	// ErrNotFound is returned by FindOne when the collection is empty
	ErrNotFound = errors.New("document not found")
	// ErrUnknownDriver is returned by NewRepository for unsupported drivers
	ErrUnknownDriver = errors.New("unknown storage driver")

	identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

type (
	// Document is a record the store can assign an identity to
	Document interface {
		SetID(id string)
	}

	// GroupCount is the number of documents sharing a field value
	GroupCount struct {
		Value string `bson:"_id" json:"value"`
		Count int    `bson:"count" json:"count"`
	}

	// Repository is an append-mostly document store keyed by collection name.
	// Implementations are safe for concurrent use.
	Repository interface {
		// CreateCollections ensures the named collections and their timestamp index exist
		CreateCollections(names ...string) error
		// Insert assigns doc a new identity and appends it
		Insert(collection string, doc Document) error
		// ReplaceSingleton removes every document in the collection then inserts doc
		ReplaceSingleton(collection string, doc Document) error
		// FindOne decodes any document of the collection into result
		FindOne(collection string, result interface{}) error
		// Recent decodes up to limit documents, newest first, into result (*[]T)
		Recent(collection string, limit int, result interface{}) error
		// GroupCount counts documents per value of a string field
		GroupCount(collection, field string, limit int) ([]GroupCount, error)
		// DeleteBefore removes documents older than timestamp and reports how many
		DeleteBefore(collection string, timestamp float64) (int, error)
		// Close releases the backend
		Close()
	}
)

// NewRepository opens the backend selected by Storage.Driver. db is only
// required for the mongodb driver.
func NewRepository(conf *config.Config, db *database.DB, logger *log.Logger) (Repository, error) {
	switch conf.S.Storage.Driver {
	case DriverMongoDB, "":
		if db == nil {
			return nil, errors.New("mongodb driver selected without a database connection")
		}
		return NewMongoRepository(db, logger), nil
	case DriverSQLite:
		return OpenSQLite(conf.S.Storage.SQLitePath, conf.S.Storage.WriteTimeout, logger)
	case DriverMySQL:
		return OpenMySQL(conf.S.Storage.MySQLDataSource, conf.S.Storage.WriteTimeout, logger)
	case DriverMemory:
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, conf.S.Storage.Driver)
	}
}

// newID generates a document identity
func newID() string {
	return uuid.New().String()
}

// validIdentifier guards names interpolated into SQL statements
func validIdentifier(kind, name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// sortGroups orders by count descending then value ascending and truncates to limit
func sortGroups(groups []GroupCount, limit int) []GroupCount {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Value < groups[j].Value
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}
