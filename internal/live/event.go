// Package live relays exercise progress between concurrently training users over
// a websocket. The Client side publishes and subscribes from a session; the Hub
// side runs in the server and fans frames out to every other connection.
package live

import "encoding/json"

// TypeExerciseUpdate is the only frame type relayed between peers.
const TypeExerciseUpdate = "exercise_update"

// Event is one progress notification.
type Event struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Exercise string `json:"exercise"`
	Progress int    `json:"progress"`
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEvent(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Type: TypeExerciseUpdate, Payload: payload})
}
