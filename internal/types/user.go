package types

// User is an authenticated principal. Token issuance and OAuth are
// handled outside the core; the core only reads these documents.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Enabled  bool   `json:"enabled"`
	Admin    bool   `json:"admin"`
	// SecretHash is the bcrypt hash of the user's API secret.
	SecretHash string `json:"secret_hash,omitempty"`
	CreatedAt  int64  `json:"created_at,omitempty"`
}

// DocID returns the document id. Implements store.Doc.
func (u *User) DocID() string { return u.ID }

// SetDocID sets the document id. Implements store.Doc.
func (u *User) SetDocID(id string) { u.ID = id }
