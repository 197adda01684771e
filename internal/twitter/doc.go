// Package twitter implements the content source against Twitter/X's
// internal web API: cookie-session authentication with file persistence,
// re-login on verification failure, and lazily paginated timeline,
// search, trends, and follower lookups.
package twitter
