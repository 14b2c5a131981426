package attendance

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"checkin/internal/auth"
	"checkin/internal/geoclient"
	"checkin/internal/metrics"
)

// Placeholders stored when the geolocation lookup fails.
const (
	LocationUnavailable = "Localização não disponível"
	NotAvailable        = "N/A"
)

// Locator resolves the coarse location attached to self check-ins.
type Locator interface {
	Locate(ctx context.Context) (geoclient.Location, error)
}

// Options tunes the service.
type Options struct {
	RecentWindow time.Duration
	RecentLimit  int
	Now          func() time.Time
}

// Service implements the member, check-in and leader operations.
type Service struct {
	repo    *Repository
	geo     Locator
	log     *logrus.Logger
	metrics *metrics.Metrics
	opts    Options

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, geo Locator, log *logrus.Logger, m *metrics.Metrics, opts Options) *Service {
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 7 * 24 * time.Hour
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, geo: geo, log: log, metrics: m, opts: opts}
}

// Register creates a member from the public form. Name and email are required.
func (s *Service) Register(ctx context.Context, in MemberInput) (Member, error) {
	in.LeaderID = nil
	if strings.TrimSpace(in.Email) == "" {
		s.metrics.Registrations.WithLabelValues("invalid").Inc()
		return Member{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.createMember(ctx, in)
}

// CreateMemberForLeader creates a member on behalf of a leader. Email is optional
// there; such members check in by name and department.
func (s *Service) CreateMemberForLeader(ctx context.Context, leaderID string, in MemberInput) (Member, error) {
	in.LeaderID = &leaderID
	return s.createMember(ctx, in)
}

func (s *Service) createMember(ctx context.Context, in MemberInput) (Member, error) {
	if strings.TrimSpace(in.Name) == "" {
		s.metrics.Registrations.WithLabelValues("invalid").Inc()
		return Member{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		// only a bare address is accepted, never "Name <addr>"
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			s.metrics.Registrations.WithLabelValues("invalid").Inc()
			return Member{}, fmt.Errorf("%w: malformed email", ErrInvalidInput)
		}
		in.Email = addr.Address
	}

	m, err := s.repo.InsertMember(ctx, in)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.metrics.Registrations.WithLabelValues("duplicate").Inc()
		} else {
			s.metrics.Registrations.WithLabelValues("error").Inc()
		}
		return Member{}, err
	}
	s.metrics.Registrations.WithLabelValues("created").Inc()
	s.log.WithFields(logrus.Fields{"member_id": m.ID, "by_leader": m.LeaderID != nil}).Info("member registered")
	return m, nil
}

// SelfCheckinInput identifies the member checking in and the request context.
// Email wins when present; otherwise Name and Group must both match.
type SelfCheckinInput struct {
	Email     string
	Name      string
	Group     string
	UserAgent string
}

// SelfCheckIn records a "rapido" event for an existing member. Unknown members
// yield ErrNotFound and nothing is written. Geolocation is best effort.
func (s *Service) SelfCheckIn(ctx context.Context, in SelfCheckinInput) (Member, CheckinEvent, error) {
	member, err := s.resolveMember(ctx, in)
	if err != nil {
		return Member{}, CheckinEvent{}, err
	}

	location, ip := s.locate(ctx, member.ID)
	ua := strings.TrimSpace(in.UserAgent)
	if ua == "" {
		ua = NotAvailable
	}

	evt, err := s.repo.RecordCheckin(ctx, CheckinEvent{
		MemberID:  member.ID,
		When:      s.opts.Now(),
		Type:      CheckinRapid,
		Location:  location,
		IP:        ip,
		UserAgent: ua,
	})
	if err != nil {
		return Member{}, CheckinEvent{}, err
	}
	s.metrics.Checkins.WithLabelValues(string(CheckinRapid)).Inc()
	s.log.WithFields(logrus.Fields{"member_id": member.ID, "event_id": evt.ID}).Info("self check-in recorded")
	return *member, evt, nil
}

func (s *Service) resolveMember(ctx context.Context, in SelfCheckinInput) (*Member, error) {
	var (
		member *Member
		err    error
	)
	switch {
	case strings.TrimSpace(in.Email) != "":
		member, err = s.repo.FindMemberByEmail(ctx, in.Email)
	case strings.TrimSpace(in.Name) != "" && strings.TrimSpace(in.Group) != "":
		member, err = s.repo.FindMemberByNameAndGroup(ctx, in.Name, in.Group)
	default:
		return nil, fmt.Errorf("%w: email or name and department required", ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}
	return member, nil
}

// locate never fails: lookup errors turn into placeholder values.
func (s *Service) locate(ctx context.Context, memberID string) (string, string) {
	if s.geo == nil {
		return LocationUnavailable, NotAvailable
	}
	loc, err := s.geo.Locate(ctx)
	if err != nil {
		s.metrics.GeolocationFailures.Inc()
		if !errors.Is(err, geoclient.ErrSkipped) {
			s.log.WithError(err).WithField("member_id", memberID).Warn("geolocation unavailable")
		}
		return LocationUnavailable, NotAvailable
	}
	ip := loc.IP
	if ip == "" {
		ip = NotAvailable
	}
	return loc.String(), ip
}

// LeaderCheckIn records presence ("lider") or absence ("ausente") for a member
// on behalf of the leader.
func (s *Service) LeaderCheckIn(ctx context.Context, leaderID, memberID string, present bool) (CheckinEvent, error) {
	if strings.TrimSpace(memberID) == "" {
		return CheckinEvent{}, fmt.Errorf("%w: member id required", ErrInvalidInput)
	}
	kind := CheckinLeader
	if !present {
		kind = CheckinAbsent
	}
	evt, err := s.repo.RecordCheckin(ctx, CheckinEvent{
		MemberID:   memberID,
		When:       s.opts.Now(),
		Type:       kind,
		RecordedBy: &leaderID,
	})
	if err != nil {
		if errors.Is(err, ErrForeignKeyViolation) {
			return CheckinEvent{}, ErrNotFound
		}
		return CheckinEvent{}, err
	}
	s.metrics.Checkins.WithLabelValues(string(kind)).Inc()
	s.log.WithFields(logrus.Fields{"member_id": memberID, "leader_id": leaderID, "type": kind}).Info("leader check-in recorded")
	return evt, nil
}

// Authenticate resolves a leader by username or email and checks the password.
// Unknown keys and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, key, secret string) (*Leader, error) {
	key = strings.TrimSpace(key)
	if key == "" || secret == "" {
		s.metrics.Logins.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidCredentials
	}
	leader, err := s.repo.FindLeaderByCredentialKey(ctx, key)
	if err != nil {
		s.metrics.Logins.WithLabelValues("error").Inc()
		return nil, err
	}
	if leader == nil {
		// burn comparable time so unknown users are not distinguishable
		auth.VerifyPassword(secret, s.dummy())
		s.metrics.Logins.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidCredentials
	}
	if !auth.VerifyPassword(secret, leader.PasswordHash) {
		s.metrics.Logins.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidCredentials
	}
	s.metrics.Logins.WithLabelValues("success").Inc()
	return leader, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword(uuid.NewString())
	})
	return s.dummyHash
}

// Dashboard gathers the leader panel figures.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	total, err := s.repo.CountMembers(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := s.repo.CountRecentCheckins(ctx, s.opts.Now().Add(-s.opts.RecentWindow))
	if err != nil {
		return Dashboard{}, err
	}
	latest, err := s.repo.ListRecentCheckins(ctx, s.opts.RecentLimit)
	if err != nil {
		return Dashboard{}, err
	}
	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		TotalMembers:   total,
		RecentCount:    recent,
		RecentWindow:   s.opts.RecentWindow,
		RecentCheckins: latest,
		Members:        members,
	}, nil
}

// RecentCheckins returns the latest events, newest first. limit is clamped to 1..100.
func (s *Service) RecentCheckins(ctx context.Context, limit int) ([]RecentCheckin, error) {
	switch {
	case limit <= 0:
		limit = s.opts.RecentLimit
	case limit > 100:
		limit = 100
	}
	return s.repo.ListRecentCheckins(ctx, limit)
}

// Members lists every member with its latest event.
func (s *Service) Members(ctx context.Context) ([]MemberAttendance, error) {
	return s.repo.ListMembers(ctx)
}

// MemberHistory returns a member and its events, newest first. Unknown ids
// yield ErrNotFound.
func (s *Service) MemberHistory(ctx context.Context, memberID string) (Member, []CheckinEvent, error) {
	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return Member{}, nil, err
	}
	if m == nil {
		return Member{}, nil, ErrNotFound
	}
	events, err := s.repo.ListMemberCheckins(ctx, memberID)
	if err != nil {
		return Member{}, nil, err
	}
	return *m, events, nil
}

// BootstrapResult reports what Bootstrap did.
type BootstrapResult struct {
	Seeded            bool
	Username          string
	GeneratedPassword string
}

// ExampleMembers is the optional demo roster seeded with the default leader.
var ExampleMembers = []MemberInput{
	{Name: "Ana Souza", Email: "ana.souza@exemplo.com", Department: "Louvor"},
	{Name: "João Pereira", Email: "joao.pereira@exemplo.com", Department: "Recepção"},
	{Name: "Maria Oliveira", Email: "maria.oliveira@exemplo.com", Department: "Infantil"},
	{Name: "Pedro Santos", Department: "Mídia"},
}

// Bootstrap seeds the default leader when no leader exists. Without a
// configured password one is generated and returned so the operator can
// log in once and rotate it.
func (s *Service) Bootstrap(ctx context.Context, seed LeaderSeed, withExamples bool) (BootstrapResult, error) {
	n, err := s.repo.CountLeaders(ctx)
	if err != nil {
		return BootstrapResult{}, err
	}
	if n > 0 {
		return BootstrapResult{}, nil
	}

	res := BootstrapResult{Username: seed.Username}
	password := seed.Password
	if password == "" {
		password = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		res.GeneratedPassword = password
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	var examples []MemberInput
	if withExamples {
		examples = ExampleMembers
	}
	seeded, err := s.repo.SeedDefaults(ctx, seed.Username, seed.Email, seed.Name, hash, examples)
	if err != nil {
		return BootstrapResult{}, err
	}
	if !seeded {
		return BootstrapResult{}, nil
	}
	res.Seeded = true

	entry := s.log.WithField("username", res.Username)
	if res.GeneratedPassword != "" {
		entry.WithField("password", res.GeneratedPassword).Warn("default leader created with a generated password, rotate it with checkinctl leader passwd")
	} else {
		entry.Info("default leader created with the configured password")
	}
	return res, nil
}
