// Package session owns the viewer's identity and bearer credential.
//
// The Store is the only writer of the persisted credential. The api.Client
// reads it through BearerToken on every request; everything else reads the
// identity through IsAuthenticated, Identity and UserID.
//
// Lifecycle:
//
//	Restore    on startup; an expired or rejected credential is cleared silently
//	SignIn     primary check; may leave a temp token and ask for a second factor
//	VerifySecondFactor
//	Register   signs in and keeps the one-time-password secret for setup
//	Logout     clears local state even when the server call fails
package session
