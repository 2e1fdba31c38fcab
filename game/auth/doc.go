// Package auth signs players in.
//
// The first sign-in for a username registers it with a bcrypt password hash;
// later sign-ins verify the password. A successful sign-in yields an Identity
// carrying the username and an auth key derived from the credentials, plus an
// HS256 JWT that transports can hand back to identify the player. Identity
// satisfies engine.SessionProvider, so a match can be started straight from a
// token.
package auth
