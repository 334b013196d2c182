package shell

// AuthState is what route resolution needs to know about the session.
type AuthState interface {
	IsAuthenticated() bool
	PendingSecondFactor() bool
}

// Resolve maps a requested path to the path that should be shown.
//
// Signed-out users land on /login, or on /2fa while a second factor is
// pending. Signed-in users are kept off /login. Unknown paths fall back
// to the dashboard.
func Resolve(path string, auth AuthState) string {
	path = normalize(path)

	switch {
	case auth.IsAuthenticated():
		if path == PathLogin || path == "/" {
			return PathDashboard
		}
		if _, ok := Lookup(path); !ok {
			return PathDashboard
		}
		return path
	case auth.PendingSecondFactor():
		return PathTwoFactor
	default:
		return PathLogin
	}
}
