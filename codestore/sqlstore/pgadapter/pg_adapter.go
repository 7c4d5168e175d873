/*
Package pgadapter provides an implementation of the
Adapter interface in the sqlstore package that works
over a PostgreSQL database.
*/
package pgadapter

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	"github.com/pbanos/treehash/codestore"
	"github.com/pbanos/treehash/codestore/sqlstore"

	// Import of PostgreSQL driver
	_ "github.com/lib/pq"
)

const (
	recordTableCreateStmt = `CREATE TABLE IF NOT EXISTS codes (
		id INTEGER PRIMARY KEY,
		code BIGINT NOT NULL,
		repr TEXT NOT NULL)`

	// MaxRecordInsertionsPerStatement is the maximum number
	// of records that are allowed to be added with a single
	// insert command with the AddRecords method of the adapter.
	// Trying to add more will result in making more insertion commands
	MaxRecordInsertionsPerStatement = 10
)

type adapter struct {
	db *sql.DB
}

/*
New takes a PostgreSQL database connection URL and returns
an Adapter that works on the database or an error if it fails to connect to it.
*/
func New(url string) (sqlstore.Adapter, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	return &adapter{db}, nil
}

func (a *adapter) CreateRecordTable(ctx context.Context) error {
	createStmt, err := a.db.PrepareContext(ctx, recordTableCreateStmt)
	if err != nil {
		return fmt.Errorf("preparing codes creation statement: %v", err)
	}
	defer createStmt.Close()
	_, err = createStmt.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("running codes creation statement: %v", err)
	}
	return nil
}

func (a *adapter) AddRecords(ctx context.Context, records []*codestore.Record) (int, error) {
	for _, chunk := range sqlstore.Chunks(len(records), MaxRecordInsertionsPerStatement) {
		var insertStmtBuffer bytes.Buffer
		insertStmtBuffer.WriteString("INSERT INTO codes (id, code, repr) VALUES ")
		values := make([]interface{}, 0, 3*(chunk[1]-chunk[0]))
		for i, r := range records[chunk[0]:chunk[1]] {
			if i > 0 {
				insertStmtBuffer.WriteString(", ")
			}
			insertStmtBuffer.WriteString(fmt.Sprintf("($%d, $%d, $%d)", 3*i+1, 3*i+2, 3*i+3))
			values = append(values, r.ID, r.Code, sqlstore.EncodeRepr(r.Repr))
		}
		insertStmtBuffer.WriteString(" ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, repr = EXCLUDED.repr")
		_, err := a.db.ExecContext(ctx, insertStmtBuffer.String(), values...)
		if err != nil {
			return chunk[0], fmt.Errorf("inserting %d records: %v", chunk[1]-chunk[0], err)
		}
	}
	return len(records), nil
}

func (a *adapter) GetRecord(ctx context.Context, id int) (*codestore.Record, error) {
	var code int
	var repr string
	err := a.db.QueryRowContext(ctx, `SELECT code, repr FROM codes WHERE id = $1`, id).Scan(&code, &repr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving record %d: %v", id, err)
	}
	values, err := sqlstore.DecodeRepr(repr)
	if err != nil {
		return nil, fmt.Errorf("retrieving record %d: %v", id, err)
	}
	return &codestore.Record{ID: id, Code: code, Repr: values}, nil
}

func (a *adapter) ListRecords(ctx context.Context) ([]*codestore.Record, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, code, repr FROM codes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*codestore.Record
	for rows.Next() {
		r := &codestore.Record{}
		var repr string
		err = rows.Scan(&r.ID, &r.Code, &repr)
		if err != nil {
			return nil, err
		}
		r.Repr, err = sqlstore.DecodeRepr(repr)
		if err != nil {
			return nil, fmt.Errorf("listing record %d: %v", r.ID, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (a *adapter) Close() error {
	return a.db.Close()
}
