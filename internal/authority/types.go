package authority

// Wire types for the game service. Transport and encoding stay the
// service's concern; these mirror its JSON bodies.

type boardResponse struct {
	Board [][]string `json:"board"`
}

type statsResponse struct {
	Color          string `json:"color"`
	CastlingRights string `json:"castling_rights"`
	EnPassant      string `json:"en_passant"`
	Halfmove       int    `json:"halfmove"`
	Fullmove       int    `json:"fullmove"`
	Ply            int    `json:"ply"`
	Check          bool   `json:"check"`
	Checkmate      bool   `json:"checkmate"`
	Draw           bool   `json:"draw"`
	Winner         string `json:"winner,omitempty"`
}

type turnResponse struct {
	Color string `json:"color,omitempty"`
	Error string `json:"error,omitempty"`
}

type moveRequest struct {
	Move string `json:"move"`
}

type moveResponse struct {
	Success bool   `json:"success"`
	Move    string `json:"move,omitempty"`
}

type checkMoveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type checkMoveResponse struct {
	Legal bool `json:"legal"`
}

type simpleResponse struct {
	Success bool `json:"success"`
}

// SessionInfo describes a discoverable networked game.
type SessionInfo struct {
	ID    string `json:"id"`
	Addr  string `json:"addr,omitempty"`
	Port  int    `json:"port,omitempty"`
	Color string `json:"color,omitempty"`
}

type createSessionRequest struct {
	Color string `json:"color"`
}

type createSessionResponse struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

type listSessionsResponse struct {
	Local  *SessionInfo  `json:"local"`
	Others []SessionInfo `json:"others"`
}

type joinSessionRequest struct {
	ID string `json:"id"`
}

type joinSessionResponse struct {
	Color string `json:"color,omitempty"`
	Error string `json:"error,omitempty"`
}

// FeedEvent is a push notification from the session host.
type FeedEvent struct {
	Type string `json:"type"`
	Move string `json:"move,omitempty"`
}
