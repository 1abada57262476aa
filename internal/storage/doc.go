// Package storage groups the snapshot store providers. The scrape.Store
// contract is a full-snapshot Load/Save: reconciliation computes the entire
// new dataset and a store either persists all of it or leaves the prior
// state untouched.
package storage
