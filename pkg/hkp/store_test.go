package hkp

import (
	"github.com/ctrliq/hkpd/pkg/keystore"
)

// fakeStore implements keystore.Store for handler tests.
type fakeStore struct {
	exact     map[string]*keystore.Record
	armored   map[string][]byte
	records   []*keystore.Record
	listErr   error
	outcome   *keystore.ImportOutcome
	importErr error
}

func (f *fakeStore) LookupExact(term string) (*keystore.Record, error) {
	if rec, ok := f.exact[term]; ok {
		return rec, nil
	}
	return nil, keystore.ErrNotFound
}

func (f *fakeStore) ExportArmored(term string) ([]byte, error) {
	return f.armored[term], nil
}

func (f *fakeStore) ListAll() ([]*keystore.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeStore) ImportArmored(keytext string) (*keystore.ImportOutcome, error) {
	return f.outcome, f.importErr
}
