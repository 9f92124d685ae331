package database

import (
	"strings"
	"testing"
)

func TestConvertToMigrateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "postgres scheme",
			in:   "postgres://user:pw@localhost:5432/intervox?sslmode=disable",
			want: "pgx5://user:pw@localhost:5432/intervox?sslmode=disable",
		},
		{
			name: "postgresql scheme",
			in:   "postgresql://user:pw@localhost/intervox",
			want: "pgx5://user:pw@localhost/intervox",
		},
		{
			name:    "unsupported scheme",
			in:      "mysql://user:pw@localhost/db",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := convertToMigrateURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("convertToMigrateURL(%q) succeeded, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("convertToMigrateURL(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("convertToMigrateURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	t.Parallel()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("reading embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations found")
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") && !strings.HasSuffix(name, ".down.sql") {
			t.Errorf("migration %q does not follow the up/down naming convention", name)
		}
	}
}
