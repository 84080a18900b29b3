package snoochat

import "github.com/NeboLoop/snoochat-go-sdk/frame"

// Session is the client's view of who it is on the socket. AccessToken and
// UserID come from Authenticate; SessionKey and DisplayName are filled in
// by a successful LOGI frame and cleared on every new connection, since the
// key is scoped to one connection.
type Session struct {
	AccessToken string
	UserID      string
	SessionKey  string
	DisplayName string
	// LoginError is the server's rejection from the most recent LOGI frame.
	LoginError  *frame.LoginError
}

// Authenticated reports whether the current connection completed login.
func (s Session) Authenticated() bool { return s.SessionKey != "" }
