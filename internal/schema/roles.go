package schema

import "strings"

// Role is a semantic column role that the prober can locate heuristically.
type Role string

const (
	RoleLat     Role = "lat"
	RoleLon     Role = "lon"
	RoleAzimuth Role = "azimuth"
	RoleSite    Role = "site"
	RoleBand    Role = "band"
	RoleCity    Role = "city"
	RoleCell    Role = "cellname"
)

// roleKeywords is the declarative matcher table: role -> ordered substring
// list, matched against lowercased column names. The matcher is data so it
// tests independently of any query path.
var roleKeywords = map[Role][]string{
	RoleLat:     {"latitude", "lat"},
	RoleLon:     {"longitude", "long", "lon"},
	RoleAzimuth: {"azimuth"},
	RoleSite:    {"sitename", "site_id", "siteid", "site"},
	RoleBand:    {"band", "spectrum", "carrier", "freq"},
	RoleCity:    {"city", "region", "town", "hq"},
	RoleCell:    {"cellname", "cell_name", "cell id", "cellid", "element", "enbcell", "d2el"},
}

// DetectRole finds the column filling a semantic role, trying in priority
// order: the configured value when it exists among the fetched columns, then
// keyword-substring matching, then (for the cell role only) any column
// containing "site". It never fails; callers decide whether a missing role is
// fatal (lat/lon) or degrades to null output.
func DetectRole(columns []string, role Role, configured string) (string, bool) {
	if configured != "" {
		for _, c := range columns {
			if c == configured {
				return c, true
			}
		}
		want := strings.ToLower(strings.TrimSpace(configured))
		for _, c := range columns {
			if strings.ToLower(strings.TrimSpace(c)) == want {
				return c, true
			}
		}
	}

	for _, c := range columns {
		lower := strings.ToLower(c)
		for _, kw := range roleKeywords[role] {
			if strings.Contains(lower, kw) {
				return c, true
			}
		}
	}

	if role == RoleCell {
		for _, c := range columns {
			if strings.Contains(strings.ToLower(c), "site") {
				return c, true
			}
		}
		// Last resort: the cell role anchors the join, any column beats none.
		if len(columns) > 0 {
			return columns[0], true
		}
	}
	return "", false
}
