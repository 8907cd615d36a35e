package instance

import "testing"

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConnectionConfig
		want    string
		wantErr bool
	}{
		{
			name: "TCP connection",
			cfg:  ConnectionConfig{Host: "localhost", Port: 3306, User: "root", Password: "secret"},
			want: "root:secret@tcp(localhost:3306)/?parseTime=true&interpolateParams=true",
		},
		{
			name: "unix socket connection",
			cfg:  ConnectionConfig{Socket: "/var/run/mysqld/mysqld.sock", User: "app", Password: "apppass"},
			want: "app:apppass@unix(/var/run/mysqld/mysqld.sock)/?parseTime=true&interpolateParams=true",
		},
		{
			name: "TLS required",
			cfg:  ConnectionConfig{Host: "db.example.com", Port: 3306, User: "admin", Password: "pass", TLSMode: "required"},
			want: "admin:pass@tcp(db.example.com:3306)/?parseTime=true&interpolateParams=true&tls=true",
		},
		{
			name:    "invalid TLS mode",
			cfg:     ConnectionConfig{Host: "localhost", Port: 3306, TLSMode: "bogus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("buildDSN() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildDSN() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEndpoint(t *testing.T) {
	cfg := ConnectionConfig{Host: "host1", Port: 3306}
	if got := cfg.Endpoint(); got != "host1:3306" {
		t.Errorf("Endpoint() = %q, want host1:3306", got)
	}
}

func TestScopeSQLKeyword(t *testing.T) {
	tests := []struct {
		scope Scope
		want  string
	}{
		{ScopeGlobal, "GLOBAL"},
		{ScopePersist, "PERSIST"},
		{ScopePersistOnly, "PERSIST_ONLY"},
	}
	for _, tt := range tests {
		if got := tt.scope.sqlKeyword(); got != tt.want {
			t.Errorf("sqlKeyword() = %q, want %q", got, tt.want)
		}
	}
}
