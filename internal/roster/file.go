package roster

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile builds a Static directory from a JSON file mapping trip IDs to
// member lists:
//
//	{
//	  "trip-1": [
//	    {"userId": "alice", "name": "Alice", "username": "alice99"}
//	  ]
//	}
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}

	var trips map[string][]fileMember
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, fmt.Errorf("parse roster file %s: %w", path, err)
	}

	dir := NewStatic()
	for tripID, entries := range trips {
		members := make([]Member, 0, len(entries))
		for i, e := range entries {
			if e.UserID == "" {
				return nil, fmt.Errorf("roster file %s: trip %q entry %d has no userId", path, tripID, i)
			}
			members = append(members, Member{UserID: e.UserID, Name: e.Name, Username: e.Username})
		}
		dir.SetMembers(tripID, members)
	}
	return dir, nil
}

type fileMember struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Username string `json:"username"`
}
