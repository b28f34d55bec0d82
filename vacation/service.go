/*
service.go - Booking, decision and configuration write paths

These are the synchronous entry points triggered by user actions. They only
validate and mutate the store; every notification that follows a mutation is
driven by the change feed through the reactor, so the same side effects fire
no matter which path performed the write.

The overlap check here is read-then-write: two simultaneous bookings for the
same user can both pass against a stale read and both land. The store offers
per-key atomicity only, and this engine accepts that race.
*/
package vacation

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/warp/vacation-engine/holiday"
	"github.com/warp/vacation-engine/tenant"
	"github.com/warp/vacation-engine/workspace"
)

// Decision action identifiers arriving from the approval prompt.
const (
	ActionApprove = "approve_vacation"
	ActionDecline = "decline_vacation"
)

// BookingRequest is a submitted booking. Dates are YYYY-MM-DD.
type BookingRequest struct {
	WorkspaceID string
	UserID      string
	Username    string
	StartDate   string
	EndDate     string
}

// DecisionAction is an approve/decline action from the approval prompt.
type DecisionAction struct {
	WorkspaceID string
	ActionID    string
	Token       DecisionToken
	Status      Status
	ResponseURL string
}

// ConfigSubmission sets the per-workspace routing configuration.
type ConfigSubmission struct {
	WorkspaceID            string
	DecisionMakerUserID    string
	NotificationsChannelID string
}

// Service implements the user-triggered operations over the tenant store.
type Service struct {
	Store     *tenant.Store
	Directory *workspace.Directory
	Messenger Messenger
	Channels  ChannelLookup
	Calendar  holiday.Calendar
	Log       *slog.Logger

	// NewID generates vacation ids; defaults to random UUIDs.
	NewID func() string
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// =============================================================================
// BOOKING
// =============================================================================

// BookVacation validates a booking against the user's existing vacations and
// persists it with status PENDING. The INSERT change event then routes it for
// approval (or auto-approves). On a validation failure the requester is told
// why before the error is returned; validation failures are never retried.
func (s *Service) BookVacation(ctx context.Context, req BookingRequest) (Vacation, error) {
	start, err := ParseDate(req.StartDate)
	if err != nil {
		return Vacation{}, s.rejected(ctx, req, err)
	}
	end, err := ParseDate(req.EndDate)
	if err != nil {
		return Vacation{}, s.rejected(ctx, req, err)
	}

	// The user record is upserted on every booking so display names stay
	// current for summaries.
	userKey := UserKey(req.UserID)
	err = s.Store.Put(ctx, req.WorkspaceID, tenant.Record{
		PK:     userKey,
		SK:     userKey,
		Fields: map[string]string{FieldUserID: req.UserID, FieldUsername: req.Username},
	})
	if err != nil {
		return Vacation{}, err
	}

	existing, err := s.userVacations(ctx, req.WorkspaceID, req.UserID)
	if err != nil {
		return Vacation{}, err
	}
	if err := ValidateNewVacation(start, end, existing); err != nil {
		return Vacation{}, s.rejected(ctx, req, err)
	}

	v := Vacation{
		WorkspaceID: req.WorkspaceID,
		UserID:      req.UserID,
		ID:          s.newID(),
		Username:    req.Username,
		Start:       start,
		End:         end,
		Status:      StatusPending,
	}
	if err := s.Store.Put(ctx, req.WorkspaceID, v.Record()); err != nil {
		return Vacation{}, err
	}
	return v, nil
}

// rejected tells the requester why the booking was refused, then hands the
// validation error back to the caller.
func (s *Service) rejected(ctx context.Context, req BookingRequest, cause error) error {
	if err := s.Messenger.SendMessage(ctx, req.WorkspaceID, req.UserID, rejectionText(cause)); err != nil {
		s.Log.Error("rejection notification failed", "user", req.UserID, "error", err)
	}
	return cause
}

// =============================================================================
// DECISION
// =============================================================================

// HandleDecision applies an approve/decline action. It is honored only while
// the referenced vacation is still PENDING: stale or duplicate decisions
// (double clicks, re-delivered actions, already-resolved vacations) are
// silently dropped - no mutation, no second notification.
func (s *Service) HandleDecision(ctx context.Context, action DecisionAction) error {
	if action.ActionID != ActionApprove && action.ActionID != ActionDecline {
		return nil
	}
	if action.Status != StatusApproved && action.Status != StatusDeclined {
		return nil
	}

	rec, ok, err := s.Store.Get(ctx, action.WorkspaceID,
		UserKey(action.Token.UserID), VacationKey(action.Token.VacationID))
	if err != nil {
		return err
	}
	if !ok || Status(rec.Field(FieldStatus)) != StatusPending {
		s.Log.Info("stale decision dropped",
			"vacation", action.Token.VacationID, "action", action.ActionID)
		return nil
	}

	err = s.Store.Update(ctx, action.WorkspaceID,
		UserKey(action.Token.UserID), VacationKey(action.Token.VacationID),
		map[string]string{FieldStatus: string(action.Status)})
	if err != nil {
		return err
	}

	if action.ResponseURL != "" {
		text := decisionConfirmationText(rec.Field(FieldUsername), action.Status)
		if err := s.Messenger.SendWebhookMessage(ctx, action.ResponseURL, text); err != nil {
			s.Log.Error("decision confirmation failed", "error", err)
		}
	}
	return nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// ConfigureWorkspace overwrites the decision-maker and notifications-channel
// records. A notifications channel is only accepted when the bot identity is
// actually a member, otherwise the save fails with ErrInvalidChannel.
// Empty fields leave the corresponding record untouched.
func (s *Service) ConfigureWorkspace(ctx context.Context, cfg ConfigSubmission) error {
	if cfg.NotificationsChannelID != "" {
		if err := s.validateChannel(ctx, cfg.WorkspaceID, cfg.NotificationsChannelID); err != nil {
			return err
		}
	}
	if cfg.DecisionMakerUserID != "" {
		if err := s.Directory.SaveDecisionMaker(ctx, cfg.WorkspaceID, cfg.DecisionMakerUserID); err != nil {
			return err
		}
	}
	if cfg.NotificationsChannelID != "" {
		if err := s.Directory.SaveNotificationsChannel(ctx, cfg.WorkspaceID, cfg.NotificationsChannelID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateChannel(ctx context.Context, workspaceID, channelID string) error {
	botID, err := s.Channels.BotUserID(ctx, workspaceID)
	if err != nil {
		return err
	}
	members, err := s.Channels.ChannelMembers(ctx, workspaceID, channelID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m == botID {
			return nil
		}
	}
	return ErrInvalidChannel
}

// =============================================================================
// SUMMARY
// =============================================================================

// UserVacationSummary renders the booked-vacation overview for a user, with
// working-day accounting against the holiday calendar. When requesterID is
// non-empty the summary is also sent to the requester as a direct message.
func (s *Service) UserVacationSummary(ctx context.Context, workspaceID, requesterID, userID string) (string, error) {
	username := "Selected user"
	userKey := UserKey(userID)
	if rec, ok, err := s.Store.Get(ctx, workspaceID, userKey, userKey); err != nil {
		return "", err
	} else if ok && rec.Field(FieldUsername) != "" {
		username = rec.Field(FieldUsername)
	}

	vacations, err := s.userVacations(ctx, workspaceID, userID)
	if err != nil {
		return "", err
	}
	sort.Slice(vacations, func(i, j int) bool {
		return vacations[i].Start.Before(vacations[j].Start)
	})

	text := summaryText(username, vacations, s.Calendar)
	if requesterID != "" {
		if err := s.Messenger.SendMessage(ctx, workspaceID, requesterID, text); err != nil {
			s.Log.Error("summary delivery failed", "requester", requesterID, "error", err)
		}
	}
	return text, nil
}

// userVacations loads all vacation records of one user within one workspace.
func (s *Service) userVacations(ctx context.Context, workspaceID, userID string) ([]Vacation, error) {
	records, err := s.Store.Query(ctx, workspaceID, UserKey(userID), tenant.Key(tenant.EntityVacation))
	if err != nil {
		return nil, err
	}
	vacations := make([]Vacation, 0, len(records))
	for _, rec := range records {
		v, err := FromFields(workspaceID, rec.Fields)
		if err != nil {
			s.Log.Warn("skipping unreadable vacation record", "sk", rec.SK, "error", err)
			continue
		}
		vacations = append(vacations, v)
	}
	return vacations, nil
}
