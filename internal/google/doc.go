// Package google drives the OAuth2 authorization-code flow against Google
// and turns stored credentials into authenticated HTTP clients.
//
// The package owns the scope list, the anti-forgery state token, the
// code-for-token exchange (with classified failures) and the silent refresh
// path that re-persists rotated tokens.
package google
