package common

// SessionCookieName is the cookie used to carry the opaque session token
// on authenticated browser requests.
const SessionCookieName = "session_token"
