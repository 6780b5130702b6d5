// Package pairing implements the invitation and pairing authorization core:
// collision-checked invitation codes, the bidirectional invitation lifecycle
// between patients and supporters, promotion of accepted invitations into
// durable pairs, and the access policy both services enforce.
package pairing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/charleshuang3/medipair/internal/gormw"
	"github.com/charleshuang3/medipair/internal/identity"
	"github.com/charleshuang3/medipair/internal/models"
	"github.com/charleshuang3/medipair/internal/storage"
)

var (
	logger = log.With().Str("component", "pairing").Logger()
)

// invitationTTL is fixed policy: invitations expire 7 days after creation.
const invitationTTL = 7 * 24 * time.Hour

// Email comparison policy: lowercase, surrounding whitespace stripped.
// Applied everywhere an invitee email is matched.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

type InvitationService struct {
	db      *gormw.DB
	pairs   *PairService
	gen     *CodeGenerator
	baseURL string

	now func() time.Time
}

func NewInvitationService(db *gormw.DB, pairs *PairService, baseURL string) *InvitationService {
	return &InvitationService{
		db:      db,
		pairs:   pairs,
		gen:     &CodeGenerator{},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

type CreateParams struct {
	InviteeEmail string
	TargetRole   string
	Message      string
}

type CreateResult struct {
	Invitation    *models.Invitation
	InvitationURL string
	QRPayload     string
}

// Create issues a new pending invitation from caller to params.InviteeEmail.
// Precondition checks run in a fixed order, each short-circuiting with its
// own error code.
func (s *InvitationService) Create(ctx context.Context, caller *identity.User, params CreateParams) (*CreateResult, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}

	if err := checkmail.ValidateFormat(params.InviteeEmail); err != nil {
		return nil, validationError("invalid invitee email address")
	}

	if normalizeEmail(params.InviteeEmail) == normalizeEmail(caller.Email) {
		return nil, ErrSelfInvitation
	}

	if !ValidRoleCombination(caller.Role, params.TargetRole) {
		return nil, ErrInvalidRoleCombination
	}

	code, err := s.gen.Generate(ctx, func(c Code) (bool, error) {
		return storage.InvitationCodeExists(s.db, c.String())
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv := &models.Invitation{
		ID:           uuid.NewString(),
		InviterID:    caller.ID,
		InviteeEmail: normalizeEmail(params.InviteeEmail),
		TargetRole:   params.TargetRole,
		Code:         code.String(),
		Status:       models.InvitationPending,
		ExpiresAt:    now.Add(invitationTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if params.Message != "" {
		msg := params.Message
		inv.Message = &msg
	}

	if err := storage.CreateInvitation(s.db, inv); err != nil {
		// The duplicate check above is advisory. A concurrent creator may
		// have taken the code between check and insert; the unique index
		// catches that, and callers see the same error as retry exhaustion.
		if storage.IsDuplicateKey(err) {
			logger.Warn().Str("code", code.String()).Msg("invitation code collided at insert")
			return nil, ErrGenerationFailed
		}
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	return &CreateResult{
		Invitation:    inv,
		InvitationURL: fmt.Sprintf("%s/invitation?code=%s", s.baseURL, code),
		QRPayload:     fmt.Sprintf("invitation:%s:%s", code, inv.InviteeEmail),
	}, nil
}

type FindParams struct {
	Code string
	// InviteeEmail narrows the lookup: when set, an invitation addressed to
	// someone else is reported as not found.
	InviteeEmail string
}

// InviterInfo is the read-only public snapshot of the inviter returned for
// presentation.
type InviterInfo struct {
	ID    string
	Name  string
	Email string
	Role  string
}

type InvitationDetails struct {
	Invitation *models.Invitation
	Inviter    InviterInfo

	// Derived at read time, never stored.
	IsExpired    bool
	IsResponded  bool
	IsValid      bool
	TimeToExpiry time.Duration
}

// FindByCode looks up an invitation by its code. Malformed codes are
// rejected before any storage access. Malformed, unassigned and
// email-mismatched codes are all reported as the same not-found error so
// callers cannot probe which codes exist.
func (s *InvitationService) FindByCode(ctx context.Context, params FindParams) (*InvitationDetails, error) {
	code, ok := ParseCode(params.Code)
	if !ok {
		return nil, ErrInvitationNotFound
	}

	inv, err := storage.GetInvitationByCode(s.db, code.String())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	if params.InviteeEmail != "" &&
		normalizeEmail(params.InviteeEmail) != normalizeEmail(inv.InviteeEmail) {
		return nil, ErrInvitationNotFound
	}

	inviter, err := storage.GetUserByID(s.db, inv.InviterID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get inviter: %w", err)
	}

	return s.details(inv, inviter), nil
}

func (s *InvitationService) details(inv *models.Invitation, inviter *models.User) *InvitationDetails {
	now := s.now()
	isExpired := now.After(inv.ExpiresAt)
	isResponded := inv.Status != models.InvitationPending

	ttl := inv.ExpiresAt.Sub(now)
	if ttl < 0 {
		ttl = 0
	}

	return &InvitationDetails{
		Invitation: inv,
		Inviter: InviterInfo{
			ID:    inviter.ID,
			Name:  inviter.Name(),
			Email: inviter.Email,
			Role:  inviter.Role,
		},
		IsExpired:    isExpired,
		IsResponded:  isResponded,
		IsValid:      !isExpired && !isResponded,
		TimeToExpiry: ttl,
	}
}

type RespondParams struct {
	Code   string
	Action string // "accept" or "reject"
}

type RespondResult struct {
	Invitation *models.Invitation
	// PairID is set when Action was "accept".
	PairID string
}

// Respond resolves a pending invitation. Rejection flips the status;
// acceptance creates the pair and flips the status inside one transaction,
// so a DUPLICATE_PAIR failure leaves the invitation pending.
func (s *InvitationService) Respond(ctx context.Context, caller *identity.User, params RespondParams) (*RespondResult, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}

	if params.Action != ActionAccept && params.Action != ActionReject {
		return nil, validationError("action must be accept or reject")
	}

	code, ok := ParseCode(params.Code)
	if !ok {
		return nil, ErrInvitationNotFound
	}

	inv, err := storage.GetInvitationByCode(s.db, code.String())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	// A stored terminal status wins over derived expiry when reporting why
	// the invitation is no longer actionable.
	now := s.now()
	if inv.Status != models.InvitationPending {
		return nil, ErrInvitationResponded
	}
	if now.After(inv.ExpiresAt) {
		return nil, ErrInvitationExpired
	}

	if !CanRespond(caller, inv, now) {
		return nil, ErrUnauthorized
	}

	if params.Action == ActionReject {
		rows, err := storage.UpdateInvitationStatus(s.db, inv.ID, models.InvitationRejected, now)
		if err != nil {
			return nil, fmt.Errorf("reject invitation: %w", err)
		}
		if rows == 0 {
			// Lost the race against another responder.
			return nil, ErrInvitationResponded
		}
		inv.Status = models.InvitationRejected
		inv.UpdatedAt = now
		return &RespondResult{Invitation: inv}, nil
	}

	// Accept: the invitee holds TargetRole, the inviter the other role.
	patientID, supporterID := inv.InviterID, caller.ID
	if inv.TargetRole == models.RolePatient {
		patientID, supporterID = caller.ID, inv.InviterID
	}

	var pair *models.Pair
	err = s.db.Transaction(func(tx *gorm.DB) error {
		txdb := &gormw.DB{DB: tx}

		p, err := s.pairs.createOrPromote(txdb, patientID, supporterID)
		if err != nil {
			return err
		}
		pair = p

		rows, err := storage.UpdateInvitationStatus(txdb, inv.ID, models.InvitationAccepted, now)
		if err != nil {
			return fmt.Errorf("accept invitation: %w", err)
		}
		if rows == 0 {
			return ErrInvitationResponded
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv.Status = models.InvitationAccepted
	inv.UpdatedAt = now
	return &RespondResult{Invitation: inv, PairID: pair.ID}, nil
}

// ListSent returns the invitations issued by caller, newest first,
// optionally filtered by status.
func (s *InvitationService) ListSent(ctx context.Context, caller *identity.User, statuses []string) ([]models.Invitation, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	if err := validStatusFilter(statuses); err != nil {
		return nil, err
	}
	invs, err := storage.ListSentInvitations(s.db, caller.ID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list sent invitations: %w", err)
	}
	return invs, nil
}

// ListReceived returns the invitations addressed to caller's email, newest
// first, optionally filtered by status.
func (s *InvitationService) ListReceived(ctx context.Context, caller *identity.User, statuses []string) ([]models.Invitation, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	if err := validStatusFilter(statuses); err != nil {
		return nil, err
	}
	invs, err := storage.ListReceivedInvitations(s.db, normalizeEmail(caller.Email), statuses)
	if err != nil {
		return nil, fmt.Errorf("list received invitations: %w", err)
	}
	return invs, nil
}

type Stats struct {
	Sent         int
	Received     int
	Accepted     int
	Expired      int
	CreatedToday int
}

// Stats summarizes the caller's invitation activity. Expiry is recomputed
// against the clock, consistent with the lazy-expiry policy.
func (s *InvitationService) Stats(ctx context.Context, caller *identity.User) (*Stats, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}

	sent, err := storage.ListSentInvitations(s.db, caller.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("list sent invitations: %w", err)
	}
	received, err := storage.ListReceivedInvitations(s.db, normalizeEmail(caller.Email), nil)
	if err != nil {
		return nil, fmt.Errorf("list received invitations: %w", err)
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &Stats{
		Sent:     len(sent),
		Received: len(received),
	}
	for _, inv := range sent {
		switch {
		case inv.Status == models.InvitationAccepted:
			stats.Accepted++
		case inv.Status == models.InvitationPending && now.After(inv.ExpiresAt):
			stats.Expired++
		}
		if !inv.CreatedAt.Before(startOfDay) {
			stats.CreatedToday++
		}
	}
	return stats, nil
}
