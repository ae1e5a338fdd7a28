// Package auth stores the palace service token and runs the browser login.
//
// A login is a Session: a listener on 127.0.0.1:7777 that the login page
// posts {"token": "..."} to. The session stores the token, hands it to the
// caller on Token(), and shuts down a second later. A Manager owns the
// current session and refuses to start a second one while it is open.
//
// TokenStore keeps the token in a TOML credentials file, falling back to a
// plain dev token file when that cannot be written. Tokens are JWTs; their
// exp claim is read without verification so an expired token can be
// dropped before any request is made.
package auth
