// Package session reads the signed-in user from the session file the CRM login writes.
package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"github.com/fistoar/crm-realtime/types"
)

// ErrNoUser is returned when the session file has no usable user identifier.
var ErrNoUser = errors.New("session: no user identifier")

// Reader resolves the current user.
type Reader interface {
	Current() (types.Session, error)
}

// FileStore reads the session file on every call, so a re-login is picked up by the next event.
type FileStore struct {
	Path string
}

// stored mirrors the session file. Admin and employee logins write different id fields.
type stored struct {
	UserID     types.ID `json:"userId"`
	EmployeeID types.ID `json:"employeeId"`
	ID         types.ID `json:"id"`
	UserName   string   `json:"userName"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Token      string   `json:"token"`
}

// Current reads the file. The identifier comes from userId, then employeeId, then id;
// the display name is never used as an identifier.
func (s FileStore) Current() (types.Session, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to read session file: %v", err)
	}
	return Parse(data)
}

// Parse decodes a session document.
func Parse(data []byte) (types.Session, error) {
	var raw stored
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return types.Session{}, fmt.Errorf("failed to parse session file: %v", err)
	}
	sess := types.Session{
		UserID:   firstID(raw.UserID, raw.EmployeeID, raw.ID),
		UserName: raw.UserName,
		Role:     raw.Role,
		Token:    raw.Token,
	}
	if sess.UserName == "" {
		sess.UserName = raw.Name
	}
	if sess.UserID.Empty() {
		return sess, ErrNoUser
	}
	return sess, nil
}

func firstID(ids ...types.ID) types.ID {
	for _, id := range ids {
		if !id.Empty() {
			return id
		}
	}
	return ""
}

// Static is a fixed session, used when the identity is known up front.
type Static types.Session

func (s Static) Current() (types.Session, error) {
	if s.UserID.Empty() {
		return types.Session(s), ErrNoUser
	}
	return types.Session(s), nil
}
