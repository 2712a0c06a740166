package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.TeamRepository     = (*Repository)(nil)
	_ repository.DomainRepository   = (*Repository)(nil)
	_ repository.SettingsRepository = (*Repository)(nil)
	_ repository.NoticeRepository   = (*Repository)(nil)
)

const uniqueViolation = "23505"

const teamColumns = `id, teamname, email, lead_name, registration_number, verified, credential,
	domain, sector, first_review_notes, second_review_notes, first_review_score,
	second_review_score, final_score, internal_game_score, memory_game_score,
	memory_game_played, number_puzzle_score, number_puzzle_played,
	stop_the_bar_score, stop_the_bar_played, created_at`

// CreateTeam inserts a team with its member roster in one transaction.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertTeam = `INSERT INTO teams (id, teamname, email, lead_name, registration_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertTeam, team.ID, team.TeamName, team.Email, team.LeadName, team.RegistrationNumber, team.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}

	const insertMember = `INSERT INTO team_members (team_id, name, registration_number, room, year, department, section, is_lead, attendance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	batch := &pgx.Batch{}
	for _, m := range team.Members {
		attendance, err := marshalAttendance(m.Attendance)
		if err != nil {
			return err
		}
		batch.Queue(insertMember, team.ID, m.Name, m.RegistrationNumber, m.Room, m.Year, m.Department, m.Section, m.IsLead, attendance)
	}
	br := tx.SendBatch(ctx, batch)
	for range team.Members {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetTeamByID loads a team with members and issues.
func (r *Repository) GetTeamByID(ctx context.Context, id string) (*domain.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE id = $1`, teamColumns)
	team, err := r.scanTeamRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, team)
}

// GetTeamByCredential resolves a verified team by login credential.
func (r *Repository) GetTeamByCredential(ctx context.Context, credential string) (*domain.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE credential = $1 AND verified`, teamColumns)
	team, err := r.scanTeamRow(r.pool.QueryRow(ctx, query, credential))
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, team)
}

// CountTeams counts all registered teams.
func (r *Repository) CountTeams(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM teams`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountVerifiedTeams counts teams that passed verification.
func (r *Repository) CountVerifiedTeams(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM teams WHERE verified`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListTeams returns teams ordered by creation, paginated when limit > 0.
func (r *Repository) ListTeams(ctx context.Context, limit, offset int) ([]domain.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams ORDER BY created_at ASC`, teamColumns)
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	return r.queryTeams(ctx, query, args...)
}

// ListTeamsBySector returns teams in a sector ordered by team name.
func (r *Repository) ListTeamsBySector(ctx context.Context, sector string) ([]domain.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE sector = $1 ORDER BY teamname ASC`, teamColumns)
	return r.queryTeams(ctx, query, sector)
}

// ListTeamsWithIssues returns teams that have at least one reported issue.
func (r *Repository) ListTeamsWithIssues(ctx context.Context) ([]domain.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams t WHERE EXISTS (SELECT 1 FROM team_issues i WHERE i.team_id = t.id)`, teamColumns)
	teams, err := r.queryTeams(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		issues, err := r.listIssues(ctx, teams[i].ID)
		if err != nil {
			return nil, err
		}
		teams[i].Issues = issues
	}
	return teams, nil
}

// MarkVerified flags a team verified and records its login credential.
func (r *Repository) MarkVerified(ctx context.Context, id, credential string) error {
	const query = `UPDATE teams SET verified = TRUE, credential = $2 WHERE id = $1`
	return r.execOnTeam(ctx, query, id, credential)
}

// AssignDomain writes the claimed topic onto the team record.
func (r *Repository) AssignDomain(ctx context.Context, id, domainName string) error {
	const query = `UPDATE teams SET domain = $2 WHERE id = $1`
	return r.execOnTeam(ctx, query, id, domainName)
}

// SetSector moves a team into a judging sector.
func (r *Repository) SetSector(ctx context.Context, id, sector string) error {
	const query = `UPDATE teams SET sector = $2 WHERE id = $1`
	return r.execOnTeam(ctx, query, id, sector)
}

// SaveReviewScores persists review notes, round scores and the final total.
func (r *Repository) SaveReviewScores(ctx context.Context, team *domain.Team) error {
	const query = `UPDATE teams SET first_review_notes = $2, second_review_notes = $3,
		first_review_score = $4, second_review_score = $5, final_score = $6 WHERE id = $1`
	return r.execOnTeam(ctx, query, team.ID, team.FirstReviewNotes, team.SecondReviewNotes,
		team.FirstReviewScore, team.SecondReviewScore, team.FinalScore)
}

// SaveMemoryGame records the memory game result and marks it played.
func (r *Repository) SaveMemoryGame(ctx context.Context, id string, score int) error {
	const query = `UPDATE teams SET memory_game_score = $2, memory_game_played = TRUE WHERE id = $1`
	return r.execOnTeam(ctx, query, id, score)
}

// SaveNumberPuzzle records the number puzzle result and marks it played.
func (r *Repository) SaveNumberPuzzle(ctx context.Context, id string, score int) error {
	const query = `UPDATE teams SET number_puzzle_score = $2, number_puzzle_played = TRUE WHERE id = $1`
	return r.execOnTeam(ctx, query, id, score)
}

// SaveStopTheBar records the stop-the-bar result and marks it played.
func (r *Repository) SaveStopTheBar(ctx context.Context, id string, score int) error {
	const query = `UPDATE teams SET stop_the_bar_score = $2, stop_the_bar_played = TRUE WHERE id = $1`
	return r.execOnTeam(ctx, query, id, score)
}

// SaveInternalScore records the organizer-run internal game score.
func (r *Repository) SaveInternalScore(ctx context.Context, id string, score int) error {
	const query = `UPDATE teams SET internal_game_score = $2 WHERE id = $1`
	return r.execOnTeam(ctx, query, id, score)
}

// SaveAttendance rewrites the attendance records for the given members.
func (r *Repository) SaveAttendance(ctx context.Context, teamID string, members []domain.TeamMember) error {
	const query = `UPDATE team_members SET attendance = $3 WHERE team_id = $1 AND registration_number = $2`
	batch := &pgx.Batch{}
	for _, m := range members {
		attendance, err := marshalAttendance(m.Attendance)
		if err != nil {
			return err
		}
		batch.Queue(query, teamID, m.RegistrationNumber, attendance)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range members {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// AddIssue appends a problem report to a team.
func (r *Repository) AddIssue(ctx context.Context, issue *domain.Issue) error {
	const query = `INSERT INTO team_issues (id, team_id, text, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, issue.ID, issue.TeamID, issue.Text, issue.Status, issue.CreatedAt)
	return err
}

// ResolveIssue marks a single issue resolved.
func (r *Repository) ResolveIssue(ctx context.Context, teamID, issueID string) error {
	const query = `UPDATE team_issues SET status = $3 WHERE team_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, teamID, issueID, domain.IssueResolved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Repository) execOnTeam(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Repository) queryTeams(ctx context.Context, query string, args ...any) ([]domain.Team, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []domain.Team
	for rows.Next() {
		team, err := r.scanTeamRow(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachMembers(ctx, teams); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *Repository) scanTeamRow(row pgx.Row) (*domain.Team, error) {
	var t domain.Team
	err := row.Scan(&t.ID, &t.TeamName, &t.Email, &t.LeadName, &t.RegistrationNumber,
		&t.Verified, &t.Credential, &t.Domain, &t.Sector, &t.FirstReviewNotes,
		&t.SecondReviewNotes, &t.FirstReviewScore, &t.SecondReviewScore, &t.FinalScore,
		&t.InternalGameScore, &t.MemoryGameScore, &t.MemoryGamePlayed,
		&t.NumberPuzzleScore, &t.NumberPuzzlePlayed, &t.StopTheBarScore,
		&t.StopTheBarPlayed, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) hydrate(ctx context.Context, team *domain.Team) (*domain.Team, error) {
	members, err := r.listMembers(ctx, []string{team.ID})
	if err != nil {
		return nil, err
	}
	team.Members = members[team.ID]
	issues, err := r.listIssues(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	team.Issues = issues
	return team, nil
}

func (r *Repository) attachMembers(ctx context.Context, teams []domain.Team) error {
	if len(teams) == 0 {
		return nil
	}
	ids := make([]string, len(teams))
	for i := range teams {
		ids[i] = teams[i].ID
	}
	members, err := r.listMembers(ctx, ids)
	if err != nil {
		return err
	}
	for i := range teams {
		teams[i].Members = members[teams[i].ID]
	}
	return nil
}

func (r *Repository) listMembers(ctx context.Context, teamIDs []string) (map[string][]domain.TeamMember, error) {
	const query = `SELECT team_id, name, registration_number, room, year, department, section, is_lead, attendance
		FROM team_members WHERE team_id = ANY($1) ORDER BY is_lead DESC, registration_number ASC`
	rows, err := r.pool.Query(ctx, query, teamIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string][]domain.TeamMember)
	for rows.Next() {
		var m domain.TeamMember
		var attendance []byte
		if err := rows.Scan(&m.TeamID, &m.Name, &m.RegistrationNumber, &m.Room, &m.Year,
			&m.Department, &m.Section, &m.IsLead, &attendance); err != nil {
			return nil, err
		}
		if len(attendance) > 0 {
			if err := json.Unmarshal(attendance, &m.Attendance); err != nil {
				return nil, err
			}
		}
		members[m.TeamID] = append(members[m.TeamID], m)
	}
	return members, rows.Err()
}

func (r *Repository) listIssues(ctx context.Context, teamID string) ([]domain.Issue, error) {
	const query = `SELECT id, team_id, text, status, created_at FROM team_issues
		WHERE team_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []domain.Issue
	for rows.Next() {
		var issue domain.Issue
		if err := rows.Scan(&issue.ID, &issue.TeamID, &issue.Text, &issue.Status, &issue.CreatedAt); err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func marshalAttendance(records []domain.Attendance) ([]byte, error) {
	if records == nil {
		records = []domain.Attendance{}
	}
	return json.Marshal(records)
}
