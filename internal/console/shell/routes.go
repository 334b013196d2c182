package shell

import "strings"

const (
	PathLogin     = "/login"
	PathTwoFactor = "/2fa"
	PathDashboard = "/dashboard"
	PathCache     = "/cache"
	PathProfile   = "/profile"
	PathSettings  = "/settings"
)

// Section groups routes in the sidebar.
type Section string

const (
	SectionOverview   Section = "Overview"
	SectionOperations Section = "Operations"
	SectionCompliance Section = "Compliance"
	SectionSystem     Section = "System"
	SectionAccount    Section = "Account"
)

// Route is one page of the console.
type Route struct {
	Path    string
	Title   string
	Section Section
	// Key is a single character used to jump to the route.
	Key string
	// Mock is set for pages rendered from the bundled sample dataset.
	Mock bool
}

var routes = []Route{
	{Path: PathDashboard, Title: "Dashboard", Section: SectionOverview, Key: "1", Mock: true},
	{Path: "/games", Title: "Games", Section: SectionOperations, Key: "2", Mock: true},
	{Path: "/transactions", Title: "Transactions", Section: SectionOperations, Key: "3", Mock: true},
	{Path: "/promotions", Title: "Promotions", Section: SectionOperations, Key: "4", Mock: true},
	{Path: "/wallets", Title: "Wallets", Section: SectionOperations, Key: "5", Mock: true},
	{Path: "/risk", Title: "Risk", Section: SectionCompliance, Key: "6", Mock: true},
	{Path: "/audit-logs", Title: "Audit Logs", Section: SectionCompliance, Key: "7", Mock: true},
	{Path: "/analytics", Title: "Analytics", Section: SectionOverview, Key: "8", Mock: true},
	{Path: PathCache, Title: "Cache", Section: SectionSystem, Key: "9"},
	{Path: PathProfile, Title: "Profile", Section: SectionAccount, Key: "p"},
	{Path: PathSettings, Title: "Settings", Section: SectionAccount, Key: "s"},
	{Path: PathTwoFactor, Title: "Two-Factor Authentication", Section: SectionAccount, Key: "t"},
}

// Routes returns every navigable page, in sidebar order. No route is gated
// by role.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// Lookup finds a route by path. Trailing slashes are ignored.
func Lookup(path string) (Route, bool) {
	path = normalize(path)
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// LookupKey finds a route by its jump key.
func LookupKey(key string) (Route, bool) {
	for _, r := range routes {
		if r.Key == key {
			return r, true
		}
	}
	return Route{}, false
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
