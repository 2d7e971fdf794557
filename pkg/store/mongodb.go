package store

import (
	"sync"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/netprobe/wirewatch/database"
	log "github.com/sirupsen/logrus"
)

// MongoRepository stores collections in the configured MongoDB database.
// Every operation runs on its own copy of the root session.
type MongoRepository struct {
	db  *database.DB
	log *log.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// NewMongoRepository wraps an open database connection
func NewMongoRepository(db *database.DB, logger *log.Logger) *MongoRepository {
	return &MongoRepository{
		db:      db,
		log:     logger,
		ensured: make(map[string]bool),
	}
}

func (m *MongoRepository) ensureCollection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ensured[name] {
		return nil
	}

	err := m.db.CreateCollection(name, []mgo.Index{
		{Key: []string{"-timestamp"}},
	})
	if err != nil {
		return err
	}
	m.ensured[name] = true
	return nil
}

// CreateCollections creates each collection with a timestamp index
func (m *MongoRepository) CreateCollections(names ...string) error {
	for _, name := range names {
		if err := m.ensureCollection(name); err != nil {
			return err
		}
	}
	return nil
}

// Insert assigns doc an identity and inserts it
func (m *MongoRepository) Insert(collection string, doc Document) error {
	if err := m.ensureCollection(collection); err != nil {
		return err
	}

	ssn := m.db.Session.Copy()
	defer ssn.Close()

	doc.SetID(newID())
	return ssn.DB(m.db.GetSelectedDB()).C(collection).Insert(doc)
}

// ReplaceSingleton removes every document then inserts doc
func (m *MongoRepository) ReplaceSingleton(collection string, doc Document) error {
	if err := m.ensureCollection(collection); err != nil {
		return err
	}

	ssn := m.db.Session.Copy()
	defer ssn.Close()
	coll := ssn.DB(m.db.GetSelectedDB()).C(collection)

	if _, err := coll.RemoveAll(nil); err != nil {
		return err
	}
	doc.SetID(newID())
	return coll.Insert(doc)
}

// FindOne decodes any document of the collection into result
func (m *MongoRepository) FindOne(collection string, result interface{}) error {
	ssn := m.db.Session.Copy()
	defer ssn.Close()

	err := ssn.DB(m.db.GetSelectedDB()).C(collection).Find(nil).One(result)
	if err == mgo.ErrNotFound {
		return ErrNotFound
	}
	return err
}

// Recent decodes up to limit documents ordered by timestamp, newest first
func (m *MongoRepository) Recent(collection string, limit int, result interface{}) error {
	ssn := m.db.Session.Copy()
	defer ssn.Close()

	return ssn.DB(m.db.GetSelectedDB()).C(collection).
		Find(nil).
		Sort("-timestamp").
		Limit(limit).
		All(result)
}

// GroupCount runs a $group aggregation over field
func (m *MongoRepository) GroupCount(collection, field string, limit int) ([]GroupCount, error) {
	ssn := m.db.Session.Copy()
	defer ssn.Close()

	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   bson.M{"$ifNull": []interface{}{"$" + field, ""}},
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.D{
			{Name: "count", Value: -1},
			{Name: "_id", Value: 1},
		}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": limit})
	}

	var groups []GroupCount
	err := ssn.DB(m.db.GetSelectedDB()).C(collection).
		Pipe(pipeline).
		AllowDiskUse().
		All(&groups)
	if err != nil {
		m.log.WithFields(log.Fields{
			"collection": collection,
			"field":      field,
			"error":      err.Error(),
		}).Error("Failed to group documents")
		return nil, err
	}
	return groups, nil
}

// DeleteBefore removes documents older than timestamp
func (m *MongoRepository) DeleteBefore(collection string, timestamp float64) (int, error) {
	ssn := m.db.Session.Copy()
	defer ssn.Close()

	info, err := ssn.DB(m.db.GetSelectedDB()).C(collection).
		RemoveAll(bson.M{"timestamp": bson.M{"$lt": timestamp}})
	if err != nil {
		return 0, err
	}
	return info.Removed, nil
}

// Close ends the root session
func (m *MongoRepository) Close() {
	m.db.Close()
}
