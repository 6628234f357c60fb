package handler

import (
	"database/sql"
	"testing"
)

func execCorrupt(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(`UPDATE Replies SET state = 'not json' WHERE message_and_chat_id = '123_102'`); err != nil {
		t.Fatalf("corrupt update failed: %v", err)
	}
}
