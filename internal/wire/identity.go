package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UserID is a normalized user identifier. The server is inconsistent about
// identifier shape: sometimes a bare string id, sometimes a populated user
// object carrying the id under "_id" (or "id"). Normalizing here keeps every
// set-membership check downstream on plain strings.
type UserID string

func (u UserID) String() string { return string(u) }

func (u *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*u = UserID(s)
		return nil
	}

	var obj struct {
		Mongo string `json:"_id"`
		Plain string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("user id: unsupported shape: %w", err)
	}
	switch {
	case obj.Mongo != "":
		*u = UserID(obj.Mongo)
	case obj.Plain != "":
		*u = UserID(obj.Plain)
	default:
		return errors.New("user id: no id field in object")
	}
	return nil
}

func (u UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(u))
}

// UserIDStrings converts a normalized id slice to plain strings.
func UserIDStrings(ids []UserID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
