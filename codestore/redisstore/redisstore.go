/*
Package redisstore provides an implementation of codestore.Store
that keeps records as encoded values under prefixed keys of a
redis DB.
*/
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pbanos/treehash/codestore"
	"gopkg.in/redis.v5"
)

/*
RecordEncodeDecoder is an interface for objects
that allow encoding records into slices of
bytes and decoding them back to records.
*/
type RecordEncodeDecoder interface {
	Encode(*codestore.Record) ([]byte, error)
	Decode([]byte) (*codestore.Record, error)
}

type redisStore struct {
	rc      *redis.Client
	prefix  string
	rencdec RecordEncodeDecoder
}

//New builds a codestore.Store backed by a redis DB
func New(rc *redis.Client, prefix string, rencdec RecordEncodeDecoder) codestore.Store {
	return &redisStore{rc, prefix, rencdec}
}

func (rs *redisStore) Put(ctx context.Context, records ...*codestore.Record) error {
	if len(records) == 0 {
		return nil
	}
	pairs := make([]interface{}, 0, 2*len(records))
	for _, r := range records {
		data, err := rs.rencdec.Encode(r)
		if err != nil {
			return fmt.Errorf("storing record %d: encoding record: %v", r.ID, err)
		}
		pairs = append(pairs, rs.keyFor(r.ID), data)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := rs.rc.MSet(pairs...).Result()
	if err != nil {
		return fmt.Errorf("storing %d records in redis: %v", len(records), err)
	}
	return nil
}

func (rs *redisStore) Get(ctx context.Context, id int) (*codestore.Record, error) {
	data, err := rs.rc.Get(rs.keyFor(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving record %d: %v", id, err)
	}
	r, err := rs.rencdec.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("retrieving record %d: decoding %q: %v", id, data, err)
	}
	return r, nil
}

func (rs *redisStore) List(ctx context.Context) ([]*codestore.Record, error) {
	keys, err := rs.rc.Keys(rs.prefix + ":*").Result()
	if err != nil {
		return nil, fmt.Errorf("listing records in redis: %v", err)
	}
	records := make([]*codestore.Record, 0, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := rs.idFor(k)
		if err != nil {
			continue
		}
		r, err := rs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if r != nil {
			records = append(records, r)
		}
	}
	codestore.SortByID(records)
	return records, nil
}

func (rs *redisStore) Close(ctx context.Context) error {
	return nil
}

func (rs *redisStore) keyFor(id int) string {
	return fmt.Sprintf("%s:%d", rs.prefix, id)
}

func (rs *redisStore) idFor(key string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(key, rs.prefix+":"))
}
