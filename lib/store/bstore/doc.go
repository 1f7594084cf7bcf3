// Package bstore implements store.IStore on top of a badger database.
//
// The store is used by the service to persist profile values. With an empty
// data directory the database lives in memory only, which is what tests and
// a throwaway service use.
package bstore
