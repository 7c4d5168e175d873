/*
Package mongodataset provides a implementation of dataset.Dataset
that uses a MongoDB database as backend.
*/
package mongodataset

import (
	"context"
	"fmt"

	"github.com/pbanos/treehash/dataset"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

/*
Document is how a sample is kept in the collection: the position
of the sample in its input, its tree in bracketed notation and the
sentence it was parsed from, if any.
*/
type Document struct {
	ID   int    `bson:"id"`
	Tree string `bson:"tree"`
	Src  string `bson:"src,omitempty"`
}

/*
Dataset is a dataset.Dataset to which documents can be added
and from which samples can be sequentially read
*/
type Dataset interface {
	dataset.Dataset
	Write(context.Context, []*Document) (int, error)
}

type mongodataset struct {
	session *mgo.Session
	loader  *dataset.Loader
}

const (
	samplesCollectionName = "samples"
)

/*
Open takes a MongoDB database session and a loader and returns a
Dataset that works on the default database for that session or an
error if it fails to connect to it.

Samples are read in id order. A document whose tree cannot be
parsed is skipped and reported through the loader.
*/
func Open(ctx context.Context, session *mgo.Session, loader *dataset.Loader) (Dataset, error) {
	mds := &mongodataset{session, loader}
	err := mds.ensureIndexes()
	if err != nil {
		return nil, err
	}
	return mds, nil
}

func (mds *mongodataset) Count(context.Context) (int, error) {
	return mds.samplesCollection().Count()
}

func (mds *mongodataset) Write(ctx context.Context, docs []*Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	idocs := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		idocs = append(idocs, d)
	}
	err := mds.samplesCollection().Insert(idocs...)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (mds *mongodataset) Read(ctx context.Context) (<-chan dataset.Sample, <-chan error) {
	samples := make(chan dataset.Sample)
	errs := make(chan error, 1)
	go func() {
		var err error
		iter := mds.samplesCollection().Find(bson.M{}).Sort("id").Iter()
		defer iter.Close()
	loop:
		for {
			doc := Document{}
			if !iter.Next(&doc) {
				break
			}
			s, lerr := mds.loader.Sample(doc.ID, doc.ID+1, doc.Tree, doc.Src)
			if lerr != nil {
				mds.loader.Skip(lerr)
				continue
			}
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break loop
			case samples <- s:
			}
		}
		if err == nil {
			err = iter.Err()
		}
		if err != nil {
			errs <- err
		}
		close(errs)
		close(samples)
	}()
	return samples, errs
}

func (mds *mongodataset) ensureIndexes() error {
	index := mgo.Index{
		Key:        []string{"id"},
		Unique:     true,
		Background: true,
	}
	err := mds.samplesCollection().EnsureIndex(index)
	if err != nil {
		return fmt.Errorf("ensuring index on sample id: %v", err)
	}
	return nil
}

func (mds *mongodataset) samplesCollection() *mgo.Collection {
	return mds.session.DB("").C(samplesCollectionName)
}
