package game

import (
	"time"

	appErr "rummy-service/pkg/errors"
)

// SeatView is one seat as shown in the authoritative status snapshot.
type SeatView struct {
	Seat      int   `json:"seat"`
	UserID    int64 `json:"userId"`
	Packed    bool  `json:"packed"`
	CardCount int   `json:"cardCount"`
	OnTurn    bool  `json:"onTurn"`
}

// Permissions tells the requester which actions the engine would
// accept from them right now.
type Permissions struct {
	CanDraw    bool `json:"canDraw"`
	CanDiscard bool `json:"canDiscard"`
	CanDeclare bool `json:"canDeclare"`
	CanPack    bool `json:"canPack"`
}

// StatusView is the authoritative round snapshot broadcast to the
// table room and served on the status event.
type StatusView struct {
	RoundID          string       `json:"roundId"`
	TableID          string       `json:"tableId"`
	Format           Format       `json:"format"`
	Phase            Phase        `json:"phase"`
	Seats            []SeatView   `json:"seats"`
	CurrentTurn      int          `json:"currentTurn"`
	DiscardTop       string       `json:"discardTop,omitempty"`
	DeckCount        int          `json:"deckCount"`
	WildCard         string       `json:"wildCard,omitempty"`
	WildRank         int          `json:"wildRank"`
	TurnDeadline     int64        `json:"turnDeadline"`
	RemainingSeconds int          `json:"remainingSeconds"`
	Permissions      *Permissions `json:"permissions,omitempty"`
}

func (s *Service) statusLocked(r *Round, forUser int64) StatusView {
	view := StatusView{
		RoundID:     r.ID,
		TableID:     r.TableID,
		Format:      r.Format,
		Phase:       r.Phase,
		CurrentTurn: r.CurrentTurn,
		DeckCount:   len(r.DrawPile),
		WildRank:    r.WildRank,
	}
	if top, ok := r.discardTop(); ok {
		view.DiscardTop = top.Code()
	}
	if r.Phase == PhaseStarted || r.Phase == PhaseCompleted {
		view.WildCard = r.WildCard.Code()
	}
	if !r.TurnDeadline.IsZero() {
		view.TurnDeadline = r.TurnDeadline.UnixMilli()
		remaining := int(time.Until(r.TurnDeadline) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		view.RemainingSeconds = remaining
	}
	for seat, userID := range r.Players {
		view.Seats = append(view.Seats, SeatView{
			Seat:      seat,
			UserID:    userID,
			Packed:    r.Packed[seat],
			CardCount: len(r.Hands[seat]),
			OnTurn:    r.Phase == PhaseStarted && seat == r.CurrentTurn,
		})
	}
	if forUser != 0 {
		view.Permissions = s.permissionsLocked(r, forUser)
	}
	return view
}

func (s *Service) permissionsLocked(r *Round, userID int64) *Permissions {
	perms := &Permissions{}
	seat := r.seatOf(userID)
	if seat < 0 || r.Phase != PhaseStarted || r.Packed[seat] {
		return perms
	}
	perms.CanPack = true
	if seat != r.CurrentTurn {
		return perms
	}
	drawn := r.Turn[seat].DrawnThisTurn
	perms.CanDraw = !drawn
	perms.CanDiscard = drawn
	perms.CanDeclare = drawn
	return perms
}

// broadcastStatusLocked emits the room snapshot before the handler
// returns, so observers never see broadcasts out of order relative to
// the mutation.
func (s *Service) broadcastStatusLocked(r *Round) {
	s.emitter.ToTable(r.TableID, "status", s.statusLocked(r, 0))
}

// Status serves the authoritative snapshot with the requester's
// action permissions.
func (s *Service) Status(roundID string, userID int64) (StatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Round(roundID)
	if !ok {
		return StatusView{}, appErr.ErrRoundNotFound
	}
	return s.statusLocked(r, userID), nil
}

// HandOf returns the private hand of one seated user.
func (s *Service) HandOf(roundID string, userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Round(roundID)
	if !ok {
		return nil, appErr.ErrRoundNotFound
	}
	seat := r.seatOf(userID)
	if seat < 0 {
		return nil, appErr.ErrTableAccessDenied
	}
	return CardCodes(r.Hands[seat]), nil
}

// DiscardTop serves the open pile's visible card.
func (s *Service) DiscardTop(roundID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store.Round(roundID)
	if !ok {
		return "", appErr.ErrRoundNotFound
	}
	top, ok := r.discardTop()
	if !ok {
		return "", nil
	}
	return top.Code(), nil
}
