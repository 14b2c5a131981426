package attendance

import "time"

// CheckinType tags how a check-in event was produced.
type CheckinType string

const (
	// CheckinRapid is a self check-in by the member.
	CheckinRapid CheckinType = "rapido"
	// CheckinLeader is a presence recorded by a leader on the member's behalf.
	CheckinLeader CheckinType = "lider"
	// CheckinAbsent is an absence recorded by a leader.
	CheckinAbsent CheckinType = "ausente"
)

// Member is a tracked worker ("obreiro"). Members never authenticate.
type Member struct {
	ID         string    `json:"id"`
	Name       string    `json:"nome"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"telefone,omitempty"`
	BirthDate  string    `json:"data_nascimento,omitempty"`
	Department string    `json:"departamento,omitempty"`
	Notes      string    `json:"observacoes,omitempty"`
	LeaderID   *string   `json:"lider_id,omitempty"`
	CreatedAt  time.Time `json:"criado_em"`
}

// MemberInput carries the fields accepted when creating a member.
type MemberInput struct {
	Name       string
	Email      string
	Phone      string
	BirthDate  string
	Department string
	Notes      string
	LeaderID   *string
}

// CheckinEvent is one immutable attendance record.
type CheckinEvent struct {
	ID         string      `json:"id"`
	MemberID   string      `json:"membro_id"`
	When       time.Time   `json:"data_checkin"`
	Type       CheckinType `json:"tipo"`
	Location   string      `json:"localizacao,omitempty"`
	IP         string      `json:"endereco_ip,omitempty"`
	UserAgent  string      `json:"user_agent,omitempty"`
	RecordedBy *string     `json:"registrado_por,omitempty"`
}

// RecentCheckin is a check-in joined with the member name for display.
type RecentCheckin struct {
	MemberID   string      `json:"membro_id"`
	MemberName string      `json:"nome"`
	When       time.Time   `json:"data_checkin"`
	Type       CheckinType `json:"tipo"`
	Location   string      `json:"localizacao,omitempty"`
}

// MemberAttendance is a member with its latest check-in event, if any.
type MemberAttendance struct {
	Member
	LastCheckin *time.Time  `json:"ultimo_checkin,omitempty"`
	LastType    CheckinType `json:"ultimo_tipo,omitempty"`
}

// Present reports whether the latest event marks the member as present.
func (m MemberAttendance) Present() bool {
	return m.LastCheckin != nil && m.LastType != CheckinAbsent
}

// Leader is an operator allowed to see and edit attendance.
type Leader struct {
	ID           string
	Username     string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// LeaderSeed describes the default leader created on an empty database.
type LeaderSeed struct {
	Username string
	Email    string
	Name     string
	Password string
}

// Dashboard aggregates what the leader panel shows.
type Dashboard struct {
	TotalMembers   int
	RecentCount    int
	RecentWindow   time.Duration
	RecentCheckins []RecentCheckin
	Members        []MemberAttendance
}
