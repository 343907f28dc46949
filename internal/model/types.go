package model

// Position is a most-recent-known coordinate pair. LocatedAt is the
// relay's receipt time in unix milliseconds, not a client-asserted value.
type Position struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	LocatedAt int64   `json:"locatedAt"`
}

// Member is one roster entry as served to clients.
type Member struct {
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	LastPosition *Position `json:"lastKnownPosition"`
}

// LocationEvent is the unit of broadcast. UserID and GroupID come from
// the publishing connection's identified and subscribed state, never
// from the inbound message body.
type LocationEvent struct {
	UserID     string
	GroupID    string
	Lat        float64
	Lng        float64
	ReceivedAt int64
}
