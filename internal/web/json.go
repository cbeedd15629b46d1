package web

import (
	"encoding/json"

	"github.com/sweeney/propbox/internal/status"
)

// formatAttributes returns the attribute list as a JSON array of
// {name, value, desc}, the shape served by /getAttributes and /ws.
func formatAttributes(snap status.Snapshot) []byte {
	data, _ := json.Marshal(status.Attributes(snap.Attributes))
	return data
}
