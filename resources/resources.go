package resources

import (
	"fmt"
	"os"

	"github.com/netprobe/wirewatch/config"
	"github.com/netprobe/wirewatch/database"
	"github.com/netprobe/wirewatch/pkg/store"
	log "github.com/sirupsen/logrus"
)

type (
	// Resources provides a data structure for passing system Resources
	Resources struct {
		Config *config.Config
		Log    *log.Logger
		DB     *database.DB // nil unless MongoDB is in use
		Store  store.Repository
	}
)

// InitResources grabs the configuration file and intitializes the configuration data
// returning a *Resources object which has all of the necessary configuration information.
// A non-empty driver overrides the configured storage driver.
func InitResources(userConfig string, driver string) *Resources {
	res, err := NewResources(userConfig, driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(-1)
	}
	return res
}

// NewResources is InitResources without the exit on failure
func NewResources(userConfig string, driver string) (*Resources, error) {
	conf, err := config.GetConfig(userConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if driver != "" {
		conf.S.Storage.Driver = driver
	}
	return newResources(conf)
}

func newResources(conf *config.Config) (*Resources, error) {
	// Fire up the logging system
	log := initLogger(&conf.S.Log)

	if conf.S.Log.LogToFile {
		if err := addFileLogger(log, conf.S.Log.LogPath); err != nil {
			return nil, fmt.Errorf("failed to set up file logging: %w", err)
		}
	}

	var db *database.DB
	if conf.S.Storage.Driver == store.DriverMongoDB || conf.S.Storage.Driver == "" {
		var err error
		db, err = database.NewDB(conf, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		//Begin logging to the database
		if conf.S.Log.LogToDB {
			if err := addMongoLogger(log, db, conf.T.Log.LogTable); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set up database logging: %w", err)
			}
		}
	}

	repo, err := store.NewRepository(conf, db, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("failed to open %s store: %w", conf.S.Storage.Driver, err)
	}

	if err := repo.CreateCollections(conf.T.Collections()...); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create collections: %w", err)
	}

	//bundle up the system resources
	return &Resources{
		Config: conf,
		Log:    log,
		DB:     db,
		Store:  repo,
	}, nil
}

// Close releases the store and its connection
func (r *Resources) Close() {
	r.Store.Close()
}
