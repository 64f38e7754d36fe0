package cluster

import (
	"strings"
	"testing"
)

const sampleHostsYAML = `
hosts:
  - driver: postgres
    host: 10.0.1.10
    port: 5432
    user: readonly
    password: secret
    admin_db: postgres
  - driver: mysql
    host: 10.0.1.20
    port: 3306
    user: readonly
    password: secret
primaries: [BHAZ01, VFUK01]
`

func TestParseHosts(t *testing.T) {
	hosts, primaries, err := ParseHosts([]byte(sampleHostsYAML))
	if err != nil {
		t.Fatalf("ParseHosts: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("got %d hosts, want 2", len(hosts))
	}
	if hosts[0].Driver != "postgres" || hosts[0].AdminDB != "postgres" {
		t.Errorf("hosts[0] = %+v", hosts[0])
	}
	if hosts[1].Driver != "mysql" || hosts[1].Port != 3306 {
		t.Errorf("hosts[1] = %+v", hosts[1])
	}
	if len(primaries) != 2 || primaries[0] != "BHAZ01" {
		t.Errorf("primaries = %v, want [BHAZ01 VFUK01]", primaries)
	}
}

func TestParseHostsValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing host", "hosts:\n  - driver: postgres\n", "host is required"},
		{"bad driver", "hosts:\n  - driver: oracle\n    host: h\n", "unsupported driver"},
		{"not yaml", ":\n  -", "parse hosts file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseHosts([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
