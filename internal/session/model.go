package session

import (
	"time"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
)

// Session is the persisted record of one task run in a project.
type Session struct {
	ID          string             `json:"id"`
	WorkDir     string             `json:"work_dir"`
	RepoHash    string             `json:"repo_hash"` // Used for directory scoping
	Goal        string             `json:"goal"`
	BaseGoal    string             `json:"base_goal,omitempty"` // Set when Goal restates a follow-up
	DatabaseURL string             `json:"database_url,omitempty"`
	Status      engine.Status      `json:"status"`
	CompletedBy engine.CompletedBy `json:"completed_by,omitempty"`
	Iterations  int                `json:"iterations"`
	Summary     string             `json:"summary,omitempty"`
	Usage       engine.Usage       `json:"usage"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	History     []engine.Turn      `json:"history,omitempty"`
}

// SessionMeta is a lightweight representation for listing.
type SessionMeta struct {
	ID        string        `json:"id"`
	Goal      string        `json:"goal"`
	Status    engine.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Summary   string        `json:"summary,omitempty"`
}

// OriginalGoal returns the goal the first run in the chain was started with.
func (s *Session) OriginalGoal() string {
	if s.BaseGoal != "" {
		return s.BaseGoal
	}
	return s.Goal
}

// Record fills s from a finished run of agent.
func (s *Session) Record(agent *engine.Agent, res engine.Result) {
	s.ID = agent.ID()
	s.Status = res.Status
	s.CompletedBy = res.CompletedBy
	s.Iterations += res.Iterations
	if res.Summary != "" {
		s.Summary = res.Summary
	}
	s.Usage.Prompt += res.Usage.Prompt
	s.Usage.Completion += res.Usage.Completion
	s.Usage.Total += res.Usage.Total
	if conv := agent.Conversation(); conv != nil {
		s.History = conv.Turns()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}
