package database

import (
	"fmt"

	"github.com/activecm/mgosec"
	"github.com/blang/semver"
	"github.com/globalsign/mgo"
	log "github.com/sirupsen/logrus"

	"github.com/netprobe/wirewatch/config"
)

//MinMongoDBVersion is the lower, inclusive bound on the
//versions of MongoDB compatible with wirewatch
var MinMongoDBVersion = semver.Version{
	Major: 3,
	Minor: 6,
	Patch: 0,
}

//MaxMongoDBVersion is the upper, exclusive bound on the
//versions of MongoDB compatible with wirewatch. Later servers
//dropped the legacy opcodes the driver relies on.
var MaxMongoDBVersion = semver.Version{
	Major: 5,
	Minor: 1,
	Patch: 0,
}

// DB is the workhorse container for messing with the database
type DB struct {
	Session  *mgo.Session
	log      *log.Logger
	selected string
}

//NewDB constructs a new DB struct with the configured database selected
func NewDB(conf *config.Config, log *log.Logger) (*DB, error) {
	session, err := connectToMongoDB(conf, log)
	if err != nil {
		return nil, err
	}
	session.SetSocketTimeout(conf.S.MongoDB.SocketTimeout)
	session.SetSyncTimeout(conf.S.MongoDB.SocketTimeout)
	session.SetCursorTimeout(0)

	return &DB{
		Session:  session,
		log:      log,
		selected: conf.S.MongoDB.Database,
	}, nil
}

//connectToMongoDB connects to MongoDB possibly with authentication and TLS
func connectToMongoDB(conf *config.Config, logger *log.Logger) (*mgo.Session, error) {
	connString := conf.S.MongoDB.ConnectionString
	authMechanism := conf.R.MongoDB.AuthMechanismParsed
	tlsConfig := conf.R.MongoDB.TLS.TLSConfig

	var sess *mgo.Session
	var err error
	if conf.S.MongoDB.TLS.Enabled {
		sess, err = mgosec.Dial(connString, authMechanism, tlsConfig)
	} else {
		sess, err = mgosec.DialInsecure(connString, authMechanism)
	}
	if err != nil {
		return sess, err
	}

	buildInfo, err := sess.BuildInfo()
	if err != nil {
		sess.Close()
		return nil, err
	}

	semVersion, err := semver.ParseTolerant(buildInfo.Version)
	if err != nil {
		sess.Close()
		return nil, err
	}

	if err := checkVersion(semVersion); err != nil {
		sess.Close()
		return nil, err
	}

	logger.WithFields(log.Fields{
		"version": semVersion.String(),
	}).Debug("Connected to MongoDB")

	return sess, nil
}

//checkVersion ensures the server version is within
//[MinMongoDBVersion, MaxMongoDBVersion)
func checkVersion(version semver.Version) error {
	if version.GE(MinMongoDBVersion) && version.LT(MaxMongoDBVersion) {
		return nil
	}
	return fmt.Errorf(
		"unsupported version of MongoDB. %s not within [%s, %s)",
		version.String(),
		MinMongoDBVersion.String(),
		MaxMongoDBVersion.String(),
	)
}

//GetSelectedDB retrieves the currently selected database
func (d *DB) GetSelectedDB() string {
	return d.selected
}

//CollectionExists returns true if collection exists in the currently
//selected database
func (d *DB) CollectionExists(table string) bool {
	ssn := d.Session.Copy()
	defer ssn.Close()
	coll, err := ssn.DB(d.selected).CollectionNames()
	if err != nil {
		d.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed collection name lookup")
		return false
	}
	for _, name := range coll {
		if name == table {
			return true
		}
	}
	return false
}

//CreateCollection creates a new collection in the currently selected
//database with the required indexes
func (d *DB) CreateCollection(name string, indexes []mgo.Index) error {
	// Make a copy of the current session
	session := d.Session.Copy()
	defer session.Close()

	d.log.Debug("Building collection: ", name)

	err := session.DB(d.selected).C(name).Create(
		&mgo.CollectionInfo{},
	)

	// Make sure it actually got created, a concurrent creator is fine
	if err != nil && !isCollectionExists(err) {
		return err
	}

	collection := session.DB(d.selected).C(name)
	for _, index := range indexes {
		err := collection.EnsureIndex(index)
		if err != nil {
			return err
		}
	}

	return nil
}

//isCollectionExists checks if create failed because collection already exists
//https://github.com/mongodb/mongo/blob/master/src/mongo/base/error_codes.err
func isCollectionExists(err error) bool {
	queryErr, ok := err.(*mgo.QueryError)
	return ok && queryErr.Code == 48
}

//Close closes the underlying session
func (d *DB) Close() {
	d.Session.Close()
}
