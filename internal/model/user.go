package model

// User is a directory identity with its display name.
//
// UID is the stable organisational username (the identifier stored on
// quotes, shards, votes and favorites). CN is the display name the directory
// currently reports for it; it is never persisted by this service.
type User struct {
	UID string `json:"uid"`
	CN  string `json:"cn"`
}
