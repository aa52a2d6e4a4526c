package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"commission-service/internal/models"

	"github.com/shopspring/decimal"
)

// GetPrimaryAgents retrieves all primary agents
func (s *Store) GetPrimaryAgents(ctx context.Context) ([]models.PrimaryAgent, error) {
	var agents []models.PrimaryAgent
	err := s.db.SelectContext(ctx, &agents, "SELECT * FROM primary_agents ORDER BY id")
	return agents, err
}

// GetPrimaryAgentByID retrieves a primary agent by ID
func (s *Store) GetPrimaryAgentByID(ctx context.Context, id int64) (*models.PrimaryAgent, error) {
	var agent models.PrimaryAgent
	err := s.db.GetContext(ctx, &agent, "SELECT * FROM primary_agents WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("primary agent %d: %w", id, models.ErrAgentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetSecondaryAgents retrieves secondary agents, optionally filtered by
// parent. Passing nil returns all secondaries, linked and independent.
func (s *Store) GetSecondaryAgents(ctx context.Context, parentID *int64) ([]models.SecondaryAgent, error) {
	var agents []models.SecondaryAgent
	if parentID == nil {
		err := s.db.SelectContext(ctx, &agents, "SELECT * FROM secondary_agents ORDER BY id")
		return agents, err
	}
	err := s.db.SelectContext(ctx, &agents,
		"SELECT * FROM secondary_agents WHERE parent_id = $1 ORDER BY id", *parentID)
	return agents, err
}

// GetSecondaryAgentByID retrieves a secondary agent by ID
func (s *Store) GetSecondaryAgentByID(ctx context.Context, id int64) (*models.SecondaryAgent, error) {
	var agent models.SecondaryAgent
	err := s.db.GetContext(ctx, &agent, "SELECT * FROM secondary_agents WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("secondary agent %d: %w", id, models.ErrAgentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetLinkedSecondaries retrieves the live team of a primary agent: active
// secondaries whose parent link is intact. Removed secondaries stay out of
// the team but keep their rows (and their order attribution).
func (s *Store) GetLinkedSecondaries(ctx context.Context, parentID int64) ([]models.SecondaryAgent, error) {
	var agents []models.SecondaryAgent
	err := s.db.SelectContext(ctx, &agents,
		"SELECT * FROM secondary_agents WHERE parent_id = $1 AND status = $2 ORDER BY id",
		parentID, models.AgentStatusActive)
	return agents, err
}

// UpdatePrimaryRate sets a primary agent's commission rate
func (s *Store) UpdatePrimaryRate(ctx context.Context, id int64, rate decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE primary_agents SET commission_rate = $1 WHERE id = $2", rate, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// UpdateSecondaryRate sets a secondary agent's commission rate
func (s *Store) UpdateSecondaryRate(ctx context.Context, id int64, rate decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE secondary_agents SET commission_rate = $1 WHERE id = $2", rate, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// UnlinkSecondary severs a secondary's link by marking it removed. ParentID
// is deliberately kept so historical orders remain attributed.
func (s *Store) UnlinkSecondary(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE secondary_agents SET status = $1 WHERE id = $2",
		models.AgentStatusRemoved, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// AddPayout records an administrator-entered payout
func (s *Store) AddPayout(ctx context.Context, payout *models.Payout) error {
	query := `
		INSERT INTO payouts (agent_tier, agent_id, amount, note, entered_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, payout, query,
		payout.AgentTier, payout.AgentID, payout.Amount, payout.Note, payout.EnteredBy)
}

// GetPaidTotal sums payouts for an agent, optionally restricted to a time
// range so the pending identity holds per reporting window.
func (s *Store) GetPaidTotal(ctx context.Context, tier models.AgentTier, agentID int64, from, to *time.Time) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(amount), 0) FROM payouts WHERE agent_tier = $1 AND agent_id = $2"
	args := []interface{}{tier, agentID}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, query, args...)
	return total, err
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("agent %d: %w", id, models.ErrAgentNotFound)
	}
	return nil
}
