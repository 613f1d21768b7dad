package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thierrydecker/myason/internal/flow"
)

func TestSQLiteInsertFlow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	row := &FlowRow{
		UUID:         "8cfa9e54-0000-4000-8000-000000000001",
		Raw:          `{"eth0,10.0.0.1,10.0.0.2,17,1000,53,0":{"bytes":128}}`,
		AgentAddress: "10.1.1.1",
		Key: flow.Key{
			Ifname:  "eth0",
			SrcIP:   "10.0.0.1",
			DstIP:   "10.0.0.2",
			Proto:   17,
			SrcPort: 1000,
			DstPort: 53,
			TOS:     0,
		},
		Entry: flow.Entry{
			Bytes:     128,
			Packets:   1,
			StartTime: 1700000000.1,
			EndTime:   1700000000.6,
			Flags:     "None",
		},
	}
	require.NoError(t, s.InsertFlow(row))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var srcIP, flags string
	var length, packets int64
	err = db.QueryRow("SELECT src_ip, flags, bytes, packets FROM flows WHERE uuid = ?", row.UUID).
		Scan(&srcIP, &flags, &length, &packets)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", srcIP)
	assert.Equal(t, "None", flags)
	assert.Equal(t, int64(128), length)
	assert.Equal(t, int64(1), packets)
}

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.db")
	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	assert.NoError(t, s2.Close())
}
