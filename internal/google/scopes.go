package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// Scopes lists everything the assistant asks consent for: reading, composing
// and relabeling mail, plus basic profile identity so the credential can be
// keyed to the signed-in account.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailComposeScope,
	gmail.GmailModifyScope,
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}
