package cluster

import (
	"strings"
	"testing"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{"postgres", "pgx", false},
		{"", "pgx", false}, // postgres is the default
		{"mysql", "mysql", false},
		{"mssql", "sqlserver", false},
		{"oracle", "", true},
	}
	for _, tt := range tests {
		t.Run("driver_"+tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.driver)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.DriverName() != tt.want {
				t.Errorf("DriverName() = %q, want %q", d.DriverName(), tt.want)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	pg, _ := DialectFor("postgres")
	my, _ := DialectFor("mysql")
	ms, _ := DialectFor("mssql")

	if got := pg.QuoteIdentifier(`Issue/Analysis Bucket new`); got != `"Issue/Analysis Bucket new"` {
		t.Errorf("postgres quote = %s", got)
	}
	if got := pg.QuoteIdentifier(`a"b`); got != `"a""b"` {
		t.Errorf("postgres escape = %s", got)
	}
	if got := my.QuoteIdentifier("col"); got != "`col`" {
		t.Errorf("mysql quote = %s", got)
	}
	if got := ms.QuoteIdentifier("col"); got != "[col]" {
		t.Errorf("mssql quote = %s", got)
	}
}

func TestApplyLimit(t *testing.T) {
	pg, _ := DialectFor("postgres")
	ms, _ := DialectFor("mssql")

	if got := pg.ApplyLimit("SELECT a FROM t", 10); got != "SELECT a FROM t LIMIT 10" {
		t.Errorf("postgres limit = %s", got)
	}
	got := ms.ApplyLimit("SELECT a FROM t", 10)
	if !strings.HasPrefix(got, "SELECT TOP 10 ") {
		t.Errorf("mssql limit = %s", got)
	}
}

func TestApplyLimitDistinct(t *testing.T) {
	ms, _ := DialectFor("mssql")

	// T-SQL requires DISTINCT before TOP.
	got := ms.ApplyLimit(`SELECT DISTINCT [Band] AS [band], [Cellname] AS [cellname] FROM [dbo].[sites]`, 1000)
	want := `SELECT DISTINCT TOP 1000 [Band] AS [band], [Cellname] AS [cellname] FROM [dbo].[sites]`
	if got != want {
		t.Errorf("mssql distinct limit = %s, want %s", got, want)
	}
	if strings.Contains(got, "TOP 1000 DISTINCT") {
		t.Errorf("TOP must not precede DISTINCT: %s", got)
	}

	pg, _ := DialectFor("postgres")
	if got := pg.ApplyLimit("SELECT DISTINCT a FROM t", 5); got != "SELECT DISTINCT a FROM t LIMIT 5" {
		t.Errorf("postgres distinct limit = %s", got)
	}
}

func TestDSN(t *testing.T) {
	h := HostConfig{Host: "10.0.0.1", Port: 5432, User: "postgres", Password: "p@ss#word"}

	pg, _ := DialectFor("postgres")
	dsn := pg.DSN(h, "BHAZ01")
	if strings.Contains(dsn, "p@ss#word") {
		t.Errorf("password not escaped in %s", dsn)
	}
	if !strings.HasSuffix(dsn, "/BHAZ01") {
		t.Errorf("database missing from %s", dsn)
	}

	my, _ := DialectFor("mysql")
	mdsn := my.DSN(HostConfig{Host: "h", Port: 3306, User: "u", Password: "p"}, "db")
	if !strings.Contains(mdsn, "@tcp(h:3306)/db") {
		t.Errorf("mysql dsn missing tcp wrapper: %s", mdsn)
	}
}

func TestRegistryOrdered(t *testing.T) {
	r := NewRegistry(nil, []string{"BHAZ01", "VFUK01"}, nil)
	for _, name := range []string{"ZED", "VFUK01", "ALPHA", "BHAZ01"} {
		r.Put(&Cluster{Name: name})
	}

	got := r.Ordered()
	want := []string{"BHAZ01", "VFUK01", "ALPHA", "ZED"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.Name != want[i] {
			t.Errorf("Ordered()[%d] = %s, want %s", i, c.Name, want[i])
		}
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	if _, ok := r.Get("missing"); ok {
		t.Error("expected miss for empty registry")
	}
	r.Put(&Cluster{Name: "BHAZ01"})
	if c, ok := r.Get("BHAZ01"); !ok || c.Name != "BHAZ01" {
		t.Error("expected hit after Put")
	}
}
