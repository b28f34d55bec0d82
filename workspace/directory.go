/*
Package workspace holds per-workspace configuration: the access credential
written at install time, the optional decision maker and the optional
notifications channel.

All three are singleton records (partition key == sort key, no natural id)
in the tenant store. Absence of the decision maker is a valid state and means
"auto-approve everything"; absence of the notifications channel means team
broadcasts are skipped.
*/
package workspace

import (
	"context"
	"errors"

	"github.com/warp/vacation-engine/tenant"
)

// ErrWorkspaceNotRegistered is returned when an access token is requested
// for a workspace that never completed installation.
var ErrWorkspaceNotRegistered = errors.New("workspace is not registered")

// Record field names.
const (
	fieldAccessToken = "access_token"
	fieldUserID      = "user_id"
	fieldChannelID   = "channel_id"
)

// Workspace is the installed-workspace identity record.
type Workspace struct {
	ID          string
	AccessToken string
}

// Directory reads and writes per-workspace configuration records.
type Directory struct {
	Store *tenant.Store
}

func NewDirectory(store *tenant.Store) *Directory {
	return &Directory{Store: store}
}

func singletonKey(entity tenant.Entity) tenant.Key {
	return tenant.MakeKey(entity, "")
}

// =============================================================================
// WORKSPACE RECORD
// =============================================================================

// SaveWorkspace registers (or re-registers) a workspace with its access
// credential. Called from the install flow.
func (d *Directory) SaveWorkspace(ctx context.Context, workspaceID, accessToken string) error {
	key := singletonKey(tenant.EntityWorkspace)
	return d.Store.Put(ctx, workspaceID, tenant.Record{
		PK:     key,
		SK:     key,
		Fields: map[string]string{fieldAccessToken: accessToken},
	})
}

// Workspace returns the workspace record, ok=false when not installed.
func (d *Directory) Workspace(ctx context.Context, workspaceID string) (Workspace, bool, error) {
	key := singletonKey(tenant.EntityWorkspace)
	rec, ok, err := d.Store.Get(ctx, workspaceID, key, key)
	if err != nil || !ok {
		return Workspace{}, false, err
	}
	return Workspace{ID: workspaceID, AccessToken: rec.Field(fieldAccessToken)}, true, nil
}

// AccessToken returns the workspace's credential for outbound calls.
// Implements the token source used by the messaging client.
func (d *Directory) AccessToken(ctx context.Context, workspaceID string) (string, error) {
	ws, ok, err := d.Workspace(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrWorkspaceNotRegistered
	}
	return ws.AccessToken, nil
}

// =============================================================================
// DECISION MAKER - Singleton, optional
// =============================================================================

// SaveDecisionMaker overwrites the configured decision maker.
func (d *Directory) SaveDecisionMaker(ctx context.Context, workspaceID, userID string) error {
	key := singletonKey(tenant.EntityDecisionMaker)
	return d.Store.Put(ctx, workspaceID, tenant.Record{
		PK:     key,
		SK:     key,
		Fields: map[string]string{fieldUserID: userID},
	})
}

// DecisionMaker returns the configured decision maker's user id.
// ok=false means none is configured and every booking auto-approves.
func (d *Directory) DecisionMaker(ctx context.Context, workspaceID string) (string, bool, error) {
	key := singletonKey(tenant.EntityDecisionMaker)
	rec, ok, err := d.Store.Get(ctx, workspaceID, key, key)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Field(fieldUserID), true, nil
}

// =============================================================================
// NOTIFICATIONS CHANNEL - Singleton, optional
// =============================================================================

// SaveNotificationsChannel overwrites the configured notifications channel.
// Membership validation happens in the configuration flow, before this call.
func (d *Directory) SaveNotificationsChannel(ctx context.Context, workspaceID, channelID string) error {
	key := singletonKey(tenant.EntityNotificationsChannel)
	return d.Store.Put(ctx, workspaceID, tenant.Record{
		PK:     key,
		SK:     key,
		Fields: map[string]string{fieldChannelID: channelID},
	})
}

// NotificationsChannel returns the configured broadcast channel id.
// ok=false means approved-vacation broadcasts are skipped.
func (d *Directory) NotificationsChannel(ctx context.Context, workspaceID string) (string, bool, error) {
	key := singletonKey(tenant.EntityNotificationsChannel)
	rec, ok, err := d.Store.Get(ctx, workspaceID, key, key)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Field(fieldChannelID), true, nil
}
