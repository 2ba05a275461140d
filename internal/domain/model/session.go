package model

import (
	"fmt"
	"time"
)

// Stage is the purchase flow position of a buyer.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageAwaitingPayment  Stage = "awaiting_payment"
	StageAwaitingQuestion Stage = "awaiting_question"
)

func (s Stage) String() string { return string(s) }

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageIdle, StageAwaitingPayment, StageAwaitingQuestion:
		return true
	}
	return false
}

// ParseStage maps a stored stage name back to the enum. Empty means idle.
func ParseStage(s string) (Stage, error) {
	if s == "" {
		return StageIdle, nil
	}
	st := Stage(s)
	if !st.Valid() {
		return StageIdle, fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

// BuyerSession is the per-chat purchase state.
type BuyerSession struct {
	BuyerID         int64     `json:"buyer_id"`
	Stage           Stage     `json:"stage"`
	SelectedService string    `json:"selected_service,omitempty"`
	Revision        uint64    `json:"revision"` // bumped on every write
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewBuyerSession returns an idle session for buyerID.
func NewBuyerSession(buyerID int64) *BuyerSession {
	now := time.Now()
	return &BuyerSession{
		BuyerID:   buyerID,
		Stage:     StageIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Enter moves the session to stage with the given service selection.
func (s *BuyerSession) Enter(stage Stage, serviceCode string) {
	s.Stage = stage
	s.SelectedService = serviceCode
	s.touch()
}

// SetStage changes only the stage.
func (s *BuyerSession) SetStage(stage Stage) {
	s.Stage = stage
	s.touch()
}

// SetSelectedService changes only the selected service.
func (s *BuyerSession) SetSelectedService(code string) {
	s.SelectedService = code
	s.touch()
}

// Reset returns the session to idle and drops the selection.
func (s *BuyerSession) Reset() {
	s.Stage = StageIdle
	s.SelectedService = ""
	s.touch()
}

func (s *BuyerSession) touch() {
	s.Revision++
	s.UpdatedAt = time.Now()
}

// Clone returns a copy that is safe to hand out of a store.
func (s *BuyerSession) Clone() *BuyerSession {
	cp := *s
	return &cp
}
