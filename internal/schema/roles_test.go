package schema

import "testing"

func TestDetectRole(t *testing.T) {
	siteCols := []string{"Site_Latitude", "Site_Longitude", "Azimuth_Deg"}

	tests := []struct {
		name       string
		columns    []string
		role       Role
		configured string
		want       string
		ok         bool
	}{
		{"lat keyword", siteCols, RoleLat, "", "Site_Latitude", true},
		{"lon keyword", siteCols, RoleLon, "", "Site_Longitude", true},
		{"azimuth", siteCols, RoleAzimuth, "", "Azimuth_Deg", true},
		{"band missing", siteCols, RoleBand, "", "", false},
		{"configured exact", siteCols, RoleLat, "Azimuth_Deg", "Azimuth_Deg", true},
		{"configured case fold", siteCols, RoleCell, "site_latitude", "Site_Latitude", true},
		{"configured absent falls back", siteCols, RoleLat, "nope", "Site_Latitude", true},
		{"cell by keyword", []string{"ID", "CellName", "Region"}, RoleCell, "", "CellName", true},
		{"cell site fallback", []string{"ID", "SiteCode"}, RoleCell, "", "SiteCode", true},
		{"cell first column fallback", []string{"ID", "Value"}, RoleCell, "", "ID", true},
		{"band spectrum", []string{"Spectrum_MHz"}, RoleBand, "", "Spectrum_MHz", true},
		{"city hq", []string{"HQ_Name"}, RoleCity, "", "HQ_Name", true},
		{"empty columns", nil, RoleLat, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectRole(tt.columns, tt.role, tt.configured)
			if got != tt.want || ok != tt.ok {
				t.Errorf("DetectRole(%v, %s, %q) = (%q, %v), want (%q, %v)",
					tt.columns, tt.role, tt.configured, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		target  string
		want    string
		ok      bool
	}{
		{"exact normalized", []string{"User_Count", "SINR"}, "user count", "User_Count", true},
		{"punctuation ignored", []string{"DL_Throughput(%)"}, "dl throughput", "DL_Throughput(%)", true},
		{"containment", []string{"Avg_SINR_dB"}, "SINR", "Avg_SINR_dB", true},
		{"containment reversed", []string{"SINR"}, "Avg SINR dB", "SINR", true},
		{"digit run", []string{"151_USER_THROUGHPUT"}, "151 User DL Tput", "151_USER_THROUGHPUT", true},
		{"no match", []string{"alpha", "beta"}, "gamma", "", false},
		{"empty target", []string{"alpha"}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FuzzyMatch(tt.columns, tt.target)
			if got != tt.want || ok != tt.ok {
				t.Errorf("FuzzyMatch(%v, %q) = (%q, %v), want (%q, %v)",
					tt.columns, tt.target, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAllowIdentifier(t *testing.T) {
	cols := []string{"Cellname", "Lat", "Long"}
	if !AllowIdentifier(cols, "Lat") {
		t.Error("catalog column should be allowed")
	}
	if AllowIdentifier(cols, `Lat"; DROP TABLE x; --`) {
		t.Error("non-catalog identifier must be rejected")
	}
	if AllowIdentifier(cols, "lat") {
		t.Error("allow-list is exact, case variants are separate identifiers")
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct{ in, want string }{
		{`public."Sites_4G"`, "Sites_4G"},
		{` sites `, "sites"},
		{`"sites"`, "sites"},
		{`myschema.sites`, "sites"},
	}
	for _, tt := range tests {
		if got := baseName(tt.in); got != tt.want {
			t.Errorf("baseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
