package team

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/costpulse/pkg/models/store"
)

type Store interface {
	ListTeams(ctx context.Context) ([]store.Team, error)
	ListMembers(ctx context.Context) ([]store.TeamMember, error)
	UpsertTeam(ctx context.Context, t store.Team) error
	AddMember(ctx context.Context, m store.TeamMember) error
}

type teamStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &teamStore{db: db}, nil
}

func (s *teamStore) ListTeams(ctx context.Context) ([]store.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, department, cost_center, manager_email, tag_patterns
		FROM teams ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	teams := make([]store.Team, 0)
	for rows.Next() {
		var t store.Team
		var dept, costCenter, manager sql.NullString
		var patterns []byte
		if err := rows.Scan(&t.ID, &t.Name, &dept, &costCenter, &manager, &patterns); err != nil {
			return nil, err
		}
		t.Department = dept.String
		t.CostCenter = costCenter.String
		t.ManagerEmail = manager.String
		t.TagPatterns = patterns
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (s *teamStore) ListMembers(ctx context.Context) ([]store.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT team_id, email FROM team_members`)
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", err)
	}
	defer rows.Close()

	members := make([]store.TeamMember, 0)
	for rows.Next() {
		var m store.TeamMember
		if err := rows.Scan(&m.TeamID, &m.Email); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *teamStore) UpsertTeam(ctx context.Context, t store.Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO teams (id, name, department, cost_center, manager_email, tag_patterns)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.Department, t.CostCenter, t.ManagerEmail, t.TagPatterns)
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}

func (s *teamStore) AddMember(ctx context.Context, m store.TeamMember) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO team_members (team_id, email) VALUES (?, ?)
	`, m.TeamID, m.Email)
	if err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}
