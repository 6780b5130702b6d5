package pairing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/charleshuang3/medipair/internal/gormw"
	"github.com/charleshuang3/medipair/internal/models"
	"github.com/charleshuang3/medipair/internal/storage"
)

type PairService struct {
	db *gormw.DB

	now func() time.Time
}

func NewPairService(db *gormw.DB) *PairService {
	return &PairService{
		db:  db,
		now: time.Now,
	}
}

// PairView is a pair enriched with participant display names for
// presentation.
type PairView struct {
	Pair          *models.Pair
	PatientName   string
	SupporterName string
}

// CreateOrPromote persists a new approved pair between the two users.
// Fails DUPLICATE_PAIR when either user is already in an approved pair,
// both on the advisory pre-check and on the partial-index conflict a
// concurrent writer runs into.
func (s *PairService) CreateOrPromote(ctx context.Context, patientID, supporterID string) (*models.Pair, error) {
	return s.createOrPromote(s.db, patientID, supporterID)
}

// createOrPromote is the transaction-aware body, so invitation acceptance
// can run it against its own tx handle.
func (s *PairService) createOrPromote(db *gormw.DB, patientID, supporterID string) (*models.Pair, error) {
	if patientID == supporterID {
		return nil, validationError("patient and supporter must be different users")
	}

	for _, id := range []string{patientID, supporterID} {
		_, err := storage.GetApprovedPairForUser(db, id)
		if err == nil {
			return nil, ErrDuplicatePair
		}
		if !storage.IsNotFound(err) {
			return nil, fmt.Errorf("check existing pair: %w", err)
		}
	}

	now := s.now()
	pair := &models.Pair{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		SupporterID: supporterID,
		Status:      models.PairApproved,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := storage.CreatePair(db, pair); err != nil {
		if storage.IsDuplicateKey(err) {
			return nil, ErrDuplicatePair
		}
		return nil, fmt.Errorf("create pair: %w", err)
	}
	return pair, nil
}

// Query returns the approved pair forUserID participates in, or nil when
// unpaired. The subject is the policy: only rows the subject participates
// in can come back, which is what keeps unrelated pairs invisible.
func (s *PairService) Query(ctx context.Context, forUserID string) (*PairView, error) {
	pair, err := storage.GetApprovedPairForUser(s.db, forUserID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query pair: %w", err)
	}

	if !pair.HasParticipant(forUserID) {
		// Unreachable given the query shape; kept as the service-boundary
		// re-check the access policy requires.
		return nil, nil
	}

	view := &PairView{Pair: pair}
	if patient, err := storage.GetUserByID(s.db, pair.PatientID); err == nil {
		view.PatientName = patient.Name()
	}
	if supporter, err := storage.GetUserByID(s.db, pair.SupporterID); err == nil {
		view.SupporterName = supporter.Name()
	}
	return view, nil
}

// Terminate permanently ends a pair. Only a participant may do it; a pair
// that is already terminated is left alone and reported as success. An
// unknown pair id is indistinguishable from someone else's pair.
func (s *PairService) Terminate(ctx context.Context, pairID, callerID string) error {
	pair, err := storage.GetPairByID(s.db, pairID)
	if err != nil {
		if storage.IsNotFound(err) {
			return ErrUnauthorized
		}
		return fmt.Errorf("get pair: %w", err)
	}

	if !pair.HasParticipant(callerID) {
		return ErrUnauthorized
	}

	if pair.Status == models.PairTerminated {
		return nil
	}

	if err := storage.UpdatePairStatus(s.db, pair.ID, models.PairTerminated, s.now()); err != nil {
		return fmt.Errorf("terminate pair: %w", err)
	}
	logger.Info().Str("pair_id", pair.ID).Str("by", callerID).Msg("pair terminated")
	return nil
}
