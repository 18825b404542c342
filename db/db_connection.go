package db

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	rethink "gopkg.in/gorethink/gorethink.v3"
)

const baseDbPoolConnections int = 2
const maxDbPoolConnections int = 20

//RethinkOptions describes how to reach a rethinkdb cluster
type RethinkOptions struct {
	Address  string
	Database string
}

//Connection contains a handle to a rethinkdb database and implements Store with one table per category.
type Connection struct {
	session *rethink.Session
	dbName  string

	mu     sync.Mutex
	tables map[string]bool
}

type kvDocument struct {
	Key       string    `gorethink:"id"`
	Value     string    `gorethink:"value"`
	UpdatedAt time.Time `gorethink:"updated_at"`
}

//InitRethink creates a new connection pool for the database at the given address
func InitRethink(opts RethinkOptions) (*Connection, error) {
	session, err := rethink.Connect(rethink.ConnectOpts{
		Address:    opts.Address,
		Database:   opts.Database,
		InitialCap: baseDbPoolConnections,
		MaxOpen:    maxDbPoolConnections,
	})
	if err != nil {
		logrus.Errorf("Failed to create connection to rethinkdb instance at address %v because %v.", opts.Address, err)
		return nil, fmt.Errorf("failed to create connection to rethinkdb instance at address %v because %v", opts.Address, err)
	}

	res := Connection{
		session: session,
		dbName:  opts.Database,
		tables:  make(map[string]bool),
	}

	//Ensure database exists; tables are created on first use
	res.CreateDatabase(opts.Database)

	return &res, nil
}

//Close cleanly terminates the database connection
func (db *Connection) Close() error {
	logrus.Info("Terminating DB connection...")
	return db.session.Close()
}

//CreateDatabase ensures the database exists
func (db *Connection) CreateDatabase(dbName string) {
	_, err := rethink.DBCreate(dbName).RunWrite(db.session)
	if err != nil {
		logrus.Debugf("Did not create %v DB: %v", dbName, err)
	}
	rethink.DB(dbName).Wait()
}

//ensureTable creates the backing table for a category. The category is only remembered once the table is known
//to exist, so a failed create is tried again on the next self-heal.
func (db *Connection) ensureTable(category string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.tables[category] {
		return
	}
	_, err := rethink.TableCreate(category, rethink.TableCreateOpts{
		PrimaryKey: "id",
	}).RunWrite(db.session)
	if err != nil && !tableExists(err) {
		logrus.Warnf("Failed to create %v table due to error %v", category, err)
		return
	}
	_, _ = rethink.Table(category).Wait(rethink.WaitOpts{WaitFor: "ready_for_writes"}).Run(db.session)
	db.tables[category] = true
}

//tableExists reports whether a table creation error only says the table is already there.
func tableExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

//withTable runs op, and on failure creates the category's table and tries exactly once more.
func (db *Connection) withTable(category string, op func() error) error {
	if !validCategory(category) {
		return ErrInvalidCategory
	}
	err := op()
	if err == nil {
		return nil
	}
	logrus.Debugf("Operation on %v failed (%v), ensuring table exists and retrying", category, err)
	db.ensureTable(category)
	return op()
}

func (db *Connection) GetRaw(_ context.Context, category, key string) ([]byte, bool, error) {
	var doc kvDocument
	found := false
	err := db.withTable(category, func() error {
		res, err := rethink.Table(category).Get(key).Run(db.session)
		if err != nil {
			return err
		}
		defer res.Close()
		if res.IsNil() {
			found = false
			return nil
		}
		found = true
		return res.One(&doc)
	})
	if err != nil {
		logrus.Warnf("Failed to get %v/%v due to error %v", category, key, err)
		return nil, false, persistenceErr("get", category, key, err)
	}
	if !found {
		return nil, false, nil
	}
	return []byte(doc.Value), true, nil
}

func (db *Connection) SetRaw(_ context.Context, category, key string, value []byte) error {
	doc := kvDocument{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	err := db.withTable(category, func() error {
		_, err := rethink.Table(category).Insert(doc, rethink.InsertOpts{
			Conflict: "replace",
		}).RunWrite(db.session)
		return err
	})
	if err != nil {
		logrus.Warnf("Failed to write %v/%v due to error %v", category, key, err)
	}
	return persistenceErr("set", category, key, err)
}

func (db *Connection) GetAllRaw(_ context.Context, category string) (map[string][]byte, error) {
	var docs []kvDocument
	err := db.withTable(category, func() error {
		res, err := rethink.Table(category).Run(db.session)
		if err != nil {
			return err
		}
		defer res.Close()
		return res.All(&docs)
	})
	if err != nil {
		logrus.Warnf("Failed to list %v due to error %v", category, err)
		return nil, persistenceErr("list", category, "", err)
	}
	out := make(map[string][]byte, len(docs))
	for _, d := range docs {
		out[d.Key] = []byte(d.Value)
	}
	return out, nil
}

func (db *Connection) Remove(_ context.Context, category, key string) error {
	err := db.withTable(category, func() error {
		_, err := rethink.Table(category).Get(key).Delete().RunWrite(db.session)
		return err
	})
	if err != nil {
		logrus.Warnf("Failed to delete %v/%v due to error %v", category, key, err)
	}
	return persistenceErr("delete", category, key, err)
}
