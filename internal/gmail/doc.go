// Package gmail implements the mailbox client: listing unread mail,
// fetching message details, marking messages read and creating reply
// drafts through the Gmail API.
//
// All provider calls share one retry policy that backs off only on
// rate-limit and quota errors, and message fetches inside a listing are
// paced sequentially to stay under the per-user quota. Results are held
// in two TTL caches (listings and details) with an exact-key
// invalidation index, so marking a message read never needs a cache
// scan.
package gmail
