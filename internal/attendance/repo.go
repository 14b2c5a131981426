package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists members, leaders and check-ins. Queries are written
// with ascending $n placeholders, which both pgx and sqlite3 accept.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const memberColumns = `id, nome, email, telefone, data_nascimento, departamento, observacoes, lider_id, criado_em`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner, extra ...any) (Member, error) {
	var (
		m        Member
		email    sql.NullString
		leaderID sql.NullString
	)
	dest := append([]any{&m.ID, &m.Name, &email, &m.Phone, &m.BirthDate, &m.Department, &m.Notes, &leaderID, &m.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Member{}, err
	}
	m.Email = email.String
	if leaderID.Valid {
		m.LeaderID = &leaderID.String
	}
	return m, nil
}

func (r *Repository) findMember(ctx context.Context, where string, args ...any) (*Member, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM membros WHERE `+where+` LIMIT 1`, args...)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// FindMemberByEmail returns the member registered with email, or nil.
func (r *Repository) FindMemberByEmail(ctx context.Context, email string) (*Member, error) {
	m, err := r.findMember(ctx, `email = $1`, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return m, nil
}

// FindMemberByNameAndGroup returns the member matching name and department, or nil.
func (r *Repository) FindMemberByNameAndGroup(ctx context.Context, name, group string) (*Member, error) {
	m, err := r.findMember(ctx, `nome = $1 AND departamento = $2`, strings.TrimSpace(name), strings.TrimSpace(group))
	if err != nil {
		return nil, fmt.Errorf("failed to get member by name and group: %w", err)
	}
	return m, nil
}

// GetMember returns a member by id, or nil.
func (r *Repository) GetMember(ctx context.Context, id string) (*Member, error) {
	m, err := r.findMember(ctx, `id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// InsertMember writes a new member. A taken email yields ErrDuplicateEmail.
func (r *Repository) InsertMember(ctx context.Context, in MemberInput) (Member, error) {
	return insertMember(ctx, r.db, in)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMember(ctx context.Context, db execer, in MemberInput) (Member, error) {
	m := Member{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(in.Name),
		Email:      normalizeEmail(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		BirthDate:  strings.TrimSpace(in.BirthDate),
		Department: strings.TrimSpace(in.Department),
		Notes:      strings.TrimSpace(in.Notes),
		LeaderID:   in.LeaderID,
		CreatedAt:  time.Now().UTC(),
	}
	email := sql.NullString{String: m.Email, Valid: m.Email != ""}
	_, err := db.ExecContext(ctx, `
		INSERT INTO membros (id, nome, email, telefone, data_nascimento, departamento, observacoes, lider_id, criado_em)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.Name, email, m.Phone, m.BirthDate, m.Department, m.Notes, m.LeaderID, m.CreatedAt)
	if err != nil {
		switch classified := classify(err); {
		case errors.Is(classified, ErrConstraintViolation):
			return Member{}, ErrDuplicateEmail
		case errors.Is(classified, ErrForeignKeyViolation):
			return Member{}, fmt.Errorf("failed to create member: %w", ErrForeignKeyViolation)
		}
		return Member{}, fmt.Errorf("failed to create member: %w", err)
	}
	return m, nil
}

// ListMembers returns every member ordered by name, each with its latest check-in.
func (r *Repository) ListMembers(ctx context.Context) ([]MemberAttendance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.nome, m.email, m.telefone, m.data_nascimento, m.departamento, m.observacoes, m.lider_id, m.criado_em,
		       c.tipo, c.data_checkin
		FROM membros m
		LEFT JOIN checkins c ON c.id = (
			SELECT c2.id FROM checkins c2
			WHERE c2.membro_id = m.id
			ORDER BY c2.data_checkin DESC, c2.id DESC
			LIMIT 1
		)
		ORDER BY m.nome, m.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var res []MemberAttendance
	for rows.Next() {
		var (
			lastType sql.NullString
			lastWhen sql.NullTime
		)
		m, err := scanMember(rows, &lastType, &lastWhen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		ma := MemberAttendance{Member: m}
		if lastWhen.Valid {
			when := lastWhen.Time
			ma.LastCheckin = &when
			ma.LastType = CheckinType(lastType.String)
		}
		res = append(res, ma)
	}
	return res, rows.Err()
}

// RecordCheckin appends an immutable check-in event. An unknown member
// yields ErrForeignKeyViolation.
func (r *Repository) RecordCheckin(ctx context.Context, evt CheckinEvent) (CheckinEvent, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.When.IsZero() {
		evt.When = time.Now()
	}
	evt.When = evt.When.UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkins (id, membro_id, data_checkin, tipo, localizacao, endereco_ip, user_agent, registrado_por)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.ID, evt.MemberID, evt.When, string(evt.Type), evt.Location, evt.IP, evt.UserAgent, evt.RecordedBy)
	if err != nil {
		if errors.Is(classify(err), ErrForeignKeyViolation) {
			return CheckinEvent{}, ErrForeignKeyViolation
		}
		return CheckinEvent{}, fmt.Errorf("failed to record check-in: %w", err)
	}
	return evt, nil
}

// ListMemberCheckins returns a member's events, newest first.
func (r *Repository) ListMemberCheckins(ctx context.Context, memberID string) ([]CheckinEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, membro_id, data_checkin, tipo, localizacao, endereco_ip, user_agent, registrado_por
		FROM checkins WHERE membro_id = $1
		ORDER BY data_checkin DESC, id DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var res []CheckinEvent
	for rows.Next() {
		var (
			evt        CheckinEvent
			kind       string
			recordedBy sql.NullString
		)
		if err := rows.Scan(&evt.ID, &evt.MemberID, &evt.When, &kind, &evt.Location, &evt.IP, &evt.UserAgent, &recordedBy); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		evt.Type = CheckinType(kind)
		if recordedBy.Valid {
			evt.RecordedBy = &recordedBy.String
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// CountMembers returns the number of registered members.
func (r *Repository) CountMembers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM membros`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

// CountRecentCheckins counts events at or after since.
func (r *Repository) CountRecentCheckins(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkins WHERE data_checkin >= $1`, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent check-ins: %w", err)
	}
	return n, nil
}

// ListRecentCheckins returns the latest events joined with member names.
func (r *Repository) ListRecentCheckins(ctx context.Context, limit int) ([]RecentCheckin, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.nome, c.data_checkin, c.tipo, c.localizacao
		FROM checkins c
		JOIN membros m ON c.membro_id = m.id
		ORDER BY c.data_checkin DESC, c.id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent check-ins: %w", err)
	}
	defer rows.Close()

	var res []RecentCheckin
	for rows.Next() {
		var (
			rc   RecentCheckin
			kind string
		)
		if err := rows.Scan(&rc.MemberID, &rc.MemberName, &rc.When, &kind, &rc.Location); err != nil {
			return nil, fmt.Errorf("failed to scan recent check-in: %w", err)
		}
		rc.Type = CheckinType(kind)
		res = append(res, rc)
	}
	return res, rows.Err()
}

// FindLeaderByCredentialKey returns the leader whose username or email equals key, or nil.
func (r *Repository) FindLeaderByCredentialKey(ctx context.Context, key string) (*Leader, error) {
	key = strings.TrimSpace(key)
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, nome, password_hash, criado_em
		FROM usuarios
		WHERE username = $1 OR email = $2
		LIMIT 1
	`, key, strings.ToLower(key))
	var l Leader
	if err := row.Scan(&l.ID, &l.Username, &l.Email, &l.Name, &l.PasswordHash, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get leader: %w", err)
	}
	return &l, nil
}

// InsertLeader writes a leader whose password is already hashed.
// A taken username or email yields ErrConstraintViolation.
func (r *Repository) InsertLeader(ctx context.Context, username, email, name, passwordHash string) (Leader, error) {
	return insertLeader(ctx, r.db, username, email, name, passwordHash)
}

func insertLeader(ctx context.Context, db execer, username, email, name, passwordHash string) (Leader, error) {
	l := Leader{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(username),
		Email:        normalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO usuarios (id, username, email, nome, password_hash, criado_em)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.Username, l.Email, l.Name, l.PasswordHash, l.CreatedAt)
	if err != nil {
		if errors.Is(classify(err), ErrConstraintViolation) {
			return Leader{}, ErrConstraintViolation
		}
		return Leader{}, fmt.Errorf("failed to create leader: %w", err)
	}
	return l, nil
}

// UpdateLeaderPassword replaces the hash of the leader identified by key.
func (r *Repository) UpdateLeaderPassword(ctx context.Context, key, passwordHash string) error {
	key = strings.TrimSpace(key)
	res, err := r.db.ExecContext(ctx, `
		UPDATE usuarios SET password_hash = $1
		WHERE username = $2 OR email = $3
	`, passwordHash, key, strings.ToLower(key))
	if err != nil {
		return fmt.Errorf("failed to update leader password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountLeaders returns the number of leader accounts.
func (r *Repository) CountLeaders(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leaders: %w", err)
	}
	return n, nil
}

// SeedDefaults creates the default leader and optional example members when
// usuarios is empty. Everything runs in one transaction; it reports whether
// anything was written.
func (r *Repository) SeedDefaults(ctx context.Context, username, email, name, passwordHash string, examples []MemberInput) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count leaders: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	leader, err := insertLeader(ctx, tx, username, email, name, passwordHash)
	if err != nil {
		// a concurrent bootstrap won the race
		if errors.Is(err, ErrConstraintViolation) {
			return false, nil
		}
		return false, err
	}
	for _, in := range examples {
		in.LeaderID = &leader.ID
		if _, err := insertMember(ctx, tx, in); err != nil {
			return false, fmt.Errorf("failed to seed member %q: %w", in.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit seed: %w", err)
	}
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
