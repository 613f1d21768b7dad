package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const flowsSchema = `
CREATE TABLE IF NOT EXISTS flows (
    uuid          TEXT PRIMARY KEY,
    raw           TEXT,
    agent_address TEXT,
    ifname        TEXT,
    src_ip        TEXT,
    dst_ip        TEXT,
    proto         INTEGER,
    src_port      INTEGER,
    dst_port      INTEGER,
    tos           INTEGER,
    bytes         INTEGER,
    packets       INTEGER,
    start_time    REAL,
    end_time      REAL,
    flags         TEXT
)`

const insertFlow = `
INSERT INTO flows (
    uuid, raw, agent_address, ifname, src_ip, dst_ip, proto,
    src_port, dst_port, tos, bytes, packets, start_time, end_time, flags
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite is the relational store. The collector opens one long-lived
// handle and shares it among all writers; database/sql makes that
// concurrent use safe.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database and ensures the flows table exists
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", path)
	}
	if _, err := db.Exec(flowsSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating flows table")
	}
	return &SQLite{db: db}, nil
}

// InsertFlow persists one decoded flow
func (s *SQLite) InsertFlow(row *FlowRow) error {
	_, err := s.db.Exec(insertFlow,
		row.UUID,
		row.Raw,
		row.AgentAddress,
		row.Key.Ifname,
		row.Key.SrcIP,
		row.Key.DstIP,
		row.Key.Proto,
		row.Key.SrcPort,
		row.Key.DstPort,
		row.Key.TOS,
		row.Entry.Bytes,
		row.Entry.Packets,
		row.Entry.StartTime,
		row.Entry.EndTime,
		row.Entry.Flags,
	)
	return errors.Wrap(err, "inserting flow")
}

// Close releases the database handle
func (s *SQLite) Close() error {
	return s.db.Close()
}
