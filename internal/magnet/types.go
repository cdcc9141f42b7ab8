package magnet

import "time"

// Status tracks the validity of a lobby reference.
type Status string

const (
	StatusUnknown          Status = "unknown"
	StatusChecking         Status = "checking"
	StatusValid            Status = "valid"
	StatusFull             Status = "full"
	StatusInvalid          Status = "invalid"
	StatusSteamUnavailable Status = "steam_unavailable"
)

// Rank orders statuses for snapshot grouping; higher is more joinable.
func (s Status) Rank() int {
	switch s {
	case StatusValid:
		return 5
	case StatusFull:
		return 4
	case StatusChecking:
		return 3
	case StatusUnknown:
		return 2
	case StatusSteamUnavailable:
		return 1
	default:
		return 0
	}
}

// Mode selects how lobby references are validated.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeFormatOnly Mode = "format-only"
	ModeExternal   Mode = "external"
)

// ParseMode maps a config string onto a Mode, defaulting to format-only.
func ParseMode(raw string) Mode {
	switch Mode(raw) {
	case ModeNone, ModeFormatOnly, ModeExternal:
		return Mode(raw)
	default:
		return ModeFormatOnly
	}
}

// PostRecord is one row of the board listing. Immutable; identity is the
// detail-page URL (case-insensitive).
type PostRecord struct {
	ID     string
	Title  string
	Author string
	Date   string
	Views  string
	URL    string
}

// WithDate derives a copy carrying a more precise timestamp. The original
// record is returned unchanged when the date is empty or identical.
func (p PostRecord) WithDate(date string) PostRecord {
	if date == "" || date == p.Date {
		return p
	}
	p.Date = date
	return p
}

// Triple is the parsed numeric identity of a joinlobby reference.
type Triple struct {
	App   uint32
	Lobby uint64
	Host  uint64
}

// Members reports lobby occupancy from a successful external check.
// The zero value means "not known / not applicable".
type Members struct {
	Count int
	Limit int
	Known bool
}

// Completion is the asynchronous result of a previously dispatched
// validation request. Err is set when the collaborator accepted the
// request but the result could not be interpreted.
type Completion struct {
	LobbyID uint64
	Found   bool
	Count   int
	Limit   int
	Err     error
}

// LobbyView is an immutable presentation record copied out of the registry.
type LobbyView struct {
	Link        string    `json:"link"`
	PostID      string    `json:"post_id"`
	PostTitle   string    `json:"post_title"`
	Author      string    `json:"author"`
	PostDate    string    `json:"post_date"`
	Views       string    `json:"views"`
	PostURL     string    `json:"post_url"`
	SourceCount int       `json:"source_count"`
	Status      Status    `json:"status"`
	MemberCount *int      `json:"member_count,omitempty"`
	MemberLimit *int      `json:"member_limit,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}
