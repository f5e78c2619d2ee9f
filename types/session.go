package types

// Session is the signed-in user read from the locally persisted session file.
type Session struct {
	UserID   ID     `json:"userId"`
	UserName string `json:"userName"`
	Role     string `json:"role"`
	Token    string `json:"token,omitempty"` // real-time auth token, when the login stored one
}
