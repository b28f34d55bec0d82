/*
reactor.go - The vacation lifecycle state machine

PURPOSE:
  Consumes the store's ordered change feed and drives every side effect of a
  vacation's life: routing to the decision maker (or auto-approval), outcome
  notifications, the team broadcast, and the cascading delete on decline.

STATE MACHINE:
  PENDING -> APPROVED   (decision action, or auto-approval when no decision
                         maker is configured)
  PENDING -> DECLINED   (decision action; the record is then deleted, so
                         DECLINED is transient and never durably queryable)

TRANSITIONS (per change event, one workspace at a time):
  INSERT  + decision maker     notify requester "submitted", send the
                               approve/decline prompt with the correlation token
  INSERT  + no decision maker  set status APPROVED via the store (no prompt);
                               the resulting MODIFY drives the notifications
  MODIFY -> APPROVED           team broadcast (when a notifications channel is
                               configured) + requester outcome notification
  MODIFY -> DECLINED           requester outcome notification, then delete
  REMOVE                       ignored - the reactor's own deletions must not
                               re-trigger processing

FAILURE SEMANTICS:
  A failure on one record never aborts the rest of the batch: it is logged,
  counted, reported to the operations channel, and skipped. Delivery failures
  are swallowed the same way WITHOUT aborting the record's remaining side
  effects, so a dead webhook cannot leave a declined vacation undeleted.

SEE ALSO:
  - tenant/feed.go: delivery and ordering contract
  - service.go: the booking/decision write paths that feed this machine
*/
package vacation

import (
	"context"
	"log/slog"

	"github.com/warp/vacation-engine/obs"
	"github.com/warp/vacation-engine/tenant"
	"github.com/warp/vacation-engine/workspace"
)

// Reporter forwards a processing failure to the operations channel.
type Reporter func(ctx context.Context, stage string, err error)

// Reactor drives the lifecycle state machine off the change feed.
type Reactor struct {
	Store     *tenant.Store
	Directory *workspace.Directory
	Messenger Messenger
	Users     UserLookup
	Log       *slog.Logger
	Report    Reporter
}

// HandleBatch processes one change-feed batch sequentially, in delivery
// order. It never fails the batch: poison records are reported and skipped
// so the feed keeps moving.
func (r *Reactor) HandleBatch(ctx context.Context, batch []tenant.Change) {
	for _, c := range batch {
		obs.FeedRecords.WithLabelValues(string(c.Kind)).Inc()
		if err := r.handleChange(ctx, c); err != nil {
			obs.ReactorFailures.Inc()
			r.Log.Error("change-feed record failed",
				"kind", c.Kind, "sk", c.SK, "error", err)
			r.report(ctx, "process_vacations", err)
		}
	}
}

func (r *Reactor) report(ctx context.Context, stage string, err error) {
	if r.Report != nil {
		r.Report(ctx, stage, err)
	}
}

func (r *Reactor) handleChange(ctx context.Context, c tenant.Change) error {
	workspaceID, sk, ok := tenant.SplitWorkspace(tenant.Key(c.SK))
	if !ok || !sk.HasEntity(tenant.EntityVacation) {
		return nil
	}

	switch c.Kind {
	case tenant.EventInsert:
		v, err := FromFields(workspaceID, c.NewImage)
		if err != nil {
			return err
		}
		return r.handleInsert(ctx, v)
	case tenant.EventModify:
		v, err := FromFields(workspaceID, c.NewImage)
		if err != nil {
			return err
		}
		return r.handleModify(ctx, v)
	case tenant.EventRemove:
		// Our own cascading deletes land here. Nothing to do.
		return nil
	}
	return nil
}

// =============================================================================
// INSERT - Route to the decision maker, or auto-approve
// =============================================================================

func (r *Reactor) handleInsert(ctx context.Context, v Vacation) error {
	decisionMaker, configured, err := r.Directory.DecisionMaker(ctx, v.WorkspaceID)
	if err != nil {
		return err
	}

	if !configured {
		// No decision maker means every booking is approved on the spot.
		// The update produces a MODIFY event which sends the notifications.
		return r.Store.Update(ctx, v.WorkspaceID,
			UserKey(v.UserID), VacationKey(v.ID),
			map[string]string{FieldStatus: string(StatusApproved)})
	}

	r.send(ctx, v.UserID, func() error {
		return r.Messenger.SendMessage(ctx, v.WorkspaceID, v.UserID, submittedText)
	})
	r.send(ctx, decisionMaker, func() error {
		return r.Messenger.SendApprovalPrompt(ctx, v.WorkspaceID, decisionMaker, ApprovalPrompt{
			RequesterName: r.requesterName(ctx, v),
			Start:         v.Start,
			End:           v.End,
			Token:         NewDecisionToken(v.UserID, v.ID),
		})
	})
	return nil
}

// =============================================================================
// MODIFY - Final outcome notifications and cascading delete
// =============================================================================

func (r *Reactor) handleModify(ctx context.Context, v Vacation) error {
	switch v.Status {
	case StatusApproved:
		channel, configured, err := r.Directory.NotificationsChannel(ctx, v.WorkspaceID)
		if err != nil {
			return err
		}
		if configured {
			r.send(ctx, channel, func() error {
				return r.Messenger.SendMessage(ctx, v.WorkspaceID, channel,
					broadcastText(r.requesterName(ctx, v), v))
			})
		}
		r.notifyRequester(ctx, v)
		return nil

	case StatusDeclined:
		r.notifyRequester(ctx, v)
		// Decline is terminal-by-absence: the record is removed, and the
		// REMOVE event above keeps this from looping.
		return r.Store.Delete(ctx, v.WorkspaceID, UserKey(v.UserID), VacationKey(v.ID))
	}
	return nil
}

func (r *Reactor) notifyRequester(ctx context.Context, v Vacation) {
	r.send(ctx, v.UserID, func() error {
		return r.Messenger.SendMessage(ctx, v.WorkspaceID, v.UserID, outcomeText(v))
	})
}

// send runs one delivery and swallows its failure after logging, counting
// and reporting it. The surrounding workflow step still completes: this
// system favors "no duplicate notification" over "never lose a notification".
func (r *Reactor) send(ctx context.Context, destination string, deliver func() error) {
	if err := deliver(); err != nil {
		obs.NotificationFailures.Inc()
		r.Log.Error("notification delivery failed", "destination", destination, "error", err)
		r.report(ctx, "notify", err)
	}
}

// requesterName resolves the display name for prompts and broadcasts,
// falling back to the username captured at booking time when the lookup
// capability is unavailable or failing.
func (r *Reactor) requesterName(ctx context.Context, v Vacation) string {
	if r.Users == nil {
		return v.Username
	}
	name, err := r.Users.UserName(ctx, v.WorkspaceID, v.UserID)
	if err != nil || name == "" {
		return v.Username
	}
	return name
}
