package db

import "testing"

func TestIsSQLite(t *testing.T) {
	cases := map[string]bool{
		"file::memory:?cache=shared": true,
		"sqlite:history.db":          true,
		"history.db":                 true,
		"app:apppass@tcp(127.0.0.1:3306)/prompt_history?parseTime=true": false,
	}
	for dsn, want := range cases {
		if got := isSQLite(dsn); got != want {
			t.Fatalf("isSQLite(%q) = %v, want %v", dsn, got, want)
		}
	}
}

func TestOpen_SQLiteMemory(t *testing.T) {
	gdb, err := Open("file:dbtest?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	type probe struct {
		ID   uint
		Name string
	}
	if err := Migrate(gdb, &probe{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := gdb.Create(&probe{Name: "x"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
}
