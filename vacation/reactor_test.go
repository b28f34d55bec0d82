package vacation_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/tenant"
	"github.com/warp/vacation-engine/tenant/store"
	"github.com/warp/vacation-engine/vacation"
	"github.com/warp/vacation-engine/workspace"
)

// =============================================================================
// RECORDING FAKES
// =============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	WorkspaceID string
	Destination string
	Text        string
}

type sentPrompt struct {
	WorkspaceID string
	Destination string
	Prompt      vacation.ApprovalPrompt
}

// fakeMessenger records every outbound delivery and can be told to fail
// deliveries to specific destinations.
type fakeMessenger struct {
	mu       sync.Mutex
	messages []sentMessage
	prompts  []sentPrompt
	webhooks []sentMessage
	failFor  map[string]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{failFor: make(map[string]error)}
}

func (f *fakeMessenger) SendMessage(_ context.Context, workspaceID, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[channelID]; err != nil {
		return err
	}
	f.messages = append(f.messages, sentMessage{WorkspaceID: workspaceID, Destination: channelID, Text: text})
	return nil
}

func (f *fakeMessenger) SendApprovalPrompt(_ context.Context, workspaceID, channelID string, prompt vacation.ApprovalPrompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[channelID]; err != nil {
		return err
	}
	f.prompts = append(f.prompts, sentPrompt{WorkspaceID: workspaceID, Destination: channelID, Prompt: prompt})
	return nil
}

func (f *fakeMessenger) SendWebhookMessage(_ context.Context, webhookURL, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[webhookURL]; err != nil {
		return err
	}
	f.webhooks = append(f.webhooks, sentMessage{Destination: webhookURL, Text: text})
	return nil
}

func (f *fakeMessenger) failDestination(dest string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[dest] = err
}

func (f *fakeMessenger) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

func (f *fakeMessenger) sentPrompts() []sentPrompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentPrompt(nil), f.prompts...)
}

func (f *fakeMessenger) messagesTo(dest string) []sentMessage {
	var out []sentMessage
	for _, m := range f.sentMessages() {
		if m.Destination == dest {
			out = append(out, m)
		}
	}
	return out
}

// =============================================================================
// TEST ENVIRONMENT - Store, directory and reactor wired over a live feed
// =============================================================================

type reactorEnv struct {
	store     *tenant.Store
	directory *workspace.Directory
	messenger *fakeMessenger
	reactor   *vacation.Reactor
}

// newReactorEnv wires a reactor onto a memory backend and starts the feed
// consumer loop. The loop stops when the test ends.
func newReactorEnv(t *testing.T) *reactorEnv {
	t.Helper()

	feed := tenant.NewFeed(64)
	st := tenant.NewStore(store.NewMemory(feed), discardLogger())
	env := &reactorEnv{
		store:     st,
		directory: workspace.NewDirectory(st),
		messenger: newFakeMessenger(),
	}
	env.reactor = &vacation.Reactor{
		Store:     st,
		Directory: env.directory,
		Messenger: env.messenger,
		Log:       discardLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go feed.Run(ctx, env.reactor.HandleBatch)
	return env
}

func pendingVacation(workspaceID, userID, id string, start, end time.Time) vacation.Vacation {
	return vacation.Vacation{
		WorkspaceID: workspaceID,
		UserID:      userID,
		ID:          id,
		Username:    "alice",
		Start:       start,
		End:         end,
		Status:      vacation.StatusPending,
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond, msg)
}

// settle gives the feed loop a moment to deliver anything still in flight
// before a "nothing else happened" assertion.
func settle() { time.Sleep(100 * time.Millisecond) }

// =============================================================================
// INSERT ROUTING TESTS
// =============================================================================

func TestReactor_NoDecisionMaker_AutoApproves(t *testing.T) {
	// GIVEN: a workspace with no decision maker configured
	// WHEN: a PENDING vacation is inserted
	// THEN: it flips to APPROVED, the requester gets exactly one approval
	//       notification, and no approval prompt is ever sent

	env := newReactorEnv(t)
	ctx := context.Background()
	v := pendingVacation("T1", "U1", "v1", day(2024, time.March, 4), day(2024, time.March, 8))

	require.NoError(t, env.store.Put(ctx, "T1", v.Record()))

	eventually(t, func() bool {
		rec, ok, err := env.store.Get(ctx, "T1", vacation.UserKey("U1"), vacation.VacationKey("v1"))
		return err == nil && ok && rec.Field(vacation.FieldStatus) == string(vacation.StatusApproved)
	}, "vacation should auto-approve")

	eventually(t, func() bool {
		return len(env.messenger.messagesTo("U1")) == 1
	}, "requester should be notified")

	settle()
	msgs := env.messenger.messagesTo("U1")
	require.Len(t, msgs, 1, "exactly one notification, no duplicate")
	assert.Contains(t, msgs[0].Text, "*approved*")
	assert.Contains(t, msgs[0].Text, "Have a good rest!")
	assert.Empty(t, env.messenger.sentPrompts(), "auto-approval must not prompt anyone")
}

func TestReactor_WithDecisionMaker_RoutesForApproval(t *testing.T) {
	// GIVEN: a decision maker is configured
	// WHEN: a PENDING vacation is inserted
	// THEN: requester gets the "submitted" note, the decision maker gets the
	//       prompt carrying the correlation token, and the record stays PENDING

	env := newReactorEnv(t)
	ctx := context.Background()
	require.NoError(t, env.directory.SaveDecisionMaker(ctx, "T1", "UBOSS"))

	v := pendingVacation("T1", "U1", "v1", day(2024, time.July, 1), day(2024, time.July, 5))
	require.NoError(t, env.store.Put(ctx, "T1", v.Record()))

	eventually(t, func() bool {
		return len(env.messenger.sentPrompts()) == 1
	}, "decision maker should receive a prompt")

	prompts := env.messenger.sentPrompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "UBOSS", prompts[0].Destination)
	assert.Equal(t, "alice", prompts[0].Prompt.RequesterName)
	assert.Equal(t, vacation.NewDecisionToken("U1", "v1"), prompts[0].Prompt.Token)

	msgs := env.messenger.messagesTo("U1")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "sent for approval")

	rec, ok, err := env.store.Get(ctx, "T1", vacation.UserKey("U1"), vacation.VacationKey("v1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(vacation.StatusPending), rec.Field(vacation.FieldStatus))
}

// =============================================================================
// OUTCOME TESTS
// =============================================================================

func TestReactor_Approved_BroadcastsWithSeasonDecoration(t *testing.T) {
	// A July vacation approved in a workspace with a notifications channel
	// produces a team broadcast decorated for summer plus the requester note.

	env := newReactorEnv(t)
	ctx := context.Background()
	require.NoError(t, env.directory.SaveDecisionMaker(ctx, "T1", "UBOSS"))
	require.NoError(t, env.directory.SaveNotificationsChannel(ctx, "T1", "CTEAM"))

	v := pendingVacation("T1", "U1", "v1", day(2024, time.July, 8), day(2024, time.July, 12))
	require.NoError(t, env.store.Put(ctx, "T1", v.Record()))
	require.NoError(t, env.store.Update(ctx, "T1",
		vacation.UserKey("U1"), vacation.VacationKey("v1"),
		map[string]string{vacation.FieldStatus: string(vacation.StatusApproved)}))

	eventually(t, func() bool {
		return len(env.messenger.messagesTo("CTEAM")) == 1
	}, "team channel should receive the broadcast")

	broadcast := env.messenger.messagesTo("CTEAM")[0]
	assert.Contains(t, broadcast.Text, "@alice booked *vacation*")
	assert.Contains(t, broadcast.Text, "08.07.2024 - 12.07.2024")
	assert.Contains(t, broadcast.Text, ":palm_tree:", "July start decorates for summer")

	eventually(t, func() bool {
		for _, m := range env.messenger.messagesTo("U1") {
			if strings.Contains(m.Text, "*approved*") {
				return true
			}
		}
		return false
	}, "requester should get the approval outcome")
}

func TestReactor_Approved_NoChannelConfigured_SkipsBroadcast(t *testing.T) {
	env := newReactorEnv(t)
	ctx := context.Background()
	require.NoError(t, env.directory.SaveDecisionMaker(ctx, "T1", "UBOSS"))

	v := pendingVacation("T1", "U1", "v1", day(2024, time.July, 8), day(2024, time.July, 12))
	require.NoError(t, env.store.Put(ctx, "T1", v.Record()))
	require.NoError(t, env.store.Update(ctx, "T1",
		vacation.UserKey("U1"), vacation.VacationKey("v1"),
		map[string]string{vacation.FieldStatus: string(vacation.StatusApproved)}))

	eventually(t, func() bool {
		for _, m := range env.messenger.messagesTo("U1") {
			if strings.Contains(m.Text, "*approved*") {
				return true
			}
		}
		return false
	}, "requester outcome still sent")

	settle()
	for _, m := range env.messenger.sentMessages() {
		assert.Equal(t, "U1", m.Destination, "only the requester hears about it")
	}
}

func TestReactor_Declined_NotifiesThenDeletes(t *testing.T) {
	// GIVEN: a routed PENDING vacation
	// WHEN: it flips to DECLINED
	// THEN: the requester is told, the record is removed, and the REMOVE
	//       event triggers nothing further

	env := newReactorEnv(t)
	ctx := context.Background()
	require.NoError(t, env.directory.SaveDecisionMaker(ctx, "T1", "UBOSS"))

	v := pendingVacation("T1", "U1", "v1", day(2024, time.September, 2), day(2024, time.September, 6))
	require.NoError(t, env.store.Put(ctx, "T1", v.Record()))
	require.NoError(t, env.store.Update(ctx, "T1",
		vacation.UserKey("U1"), vacation.VacationKey("v1"),
		map[string]string{vacation.FieldStatus: string(vacation.StatusDeclined)}))

	eventually(t, func() bool {
		_, ok, err := env.store.Get(ctx, "T1", vacation.UserKey("U1"), vacation.VacationKey("v1"))
		return err == nil && !ok
	}, "declined vacation should be deleted")

	var declinedNotes int
	for _, m := range env.messenger.messagesTo("U1") {
		if strings.Contains(m.Text, "*declined*") {
			declinedNotes++
			assert.Contains(t, m.Text, "Contact your manager")
		}
	}
	assert.Equal(t, 1, declinedNotes)

	settle()
	assert.Len(t, env.messenger.messagesTo("U1"), 2, "submitted note plus decline outcome, nothing from the REMOVE")
}

func TestReactor_DeliveryFailure_StillDeletesDeclined(t *testing.T) {
	// A dead requester DM must not leave a declined vacation in the store.

	env := newReactorEnv(t)
	ctx := context.Background()
	require.NoError(t, env.directory.SaveDecisionMaker(ctx, "T1", "UBOSS"))
	env.messenger.failDestination("U1", errors.New("channel_not_found"))

	v := pendingVacation("T1", "U1", "v1", day(2024, time.October, 7), day(2024, time.October, 11))
	require.NoError(t, env.store.Put(ctx, "T1", v.Record()))
	require.NoError(t, env.store.Update(ctx, "T1",
		vacation.UserKey("U1"), vacation.VacationKey("v1"),
		map[string]string{vacation.FieldStatus: string(vacation.StatusDeclined)}))

	eventually(t, func() bool {
		_, ok, err := env.store.Get(ctx, "T1", vacation.UserKey("U1"), vacation.VacationKey("v1"))
		return err == nil && !ok
	}, "record deleted despite the delivery failure")
}

func TestReactor_OwnWritesDoNotBlockOnBacklog(t *testing.T) {
	// GIVEN: a minimally sized feed already holding an undrained change
	// WHEN: the reactor handles an auto-approve INSERT, whose status update
	//       publishes a MODIFY into that same feed
	// THEN: HandleBatch returns; the reactor must never block on publishing
	//       follow-on changes into the feed it is the sole consumer of

	feed := tenant.NewFeed(1)
	st := tenant.NewStore(store.NewMemory(feed), discardLogger())
	messenger := newFakeMessenger()
	reactor := &vacation.Reactor{
		Store:     st,
		Directory: workspace.NewDirectory(st),
		Messenger: messenger,
		Log:       discardLogger(),
	}

	ctx := context.Background()
	v := pendingVacation("T1", "U1", "v1", day(2024, time.March, 4), day(2024, time.March, 8))
	// No decision maker configured: handling the INSERT auto-approves via a
	// store update. The Put queues the INSERT as backlog; nothing drains it.
	require.NoError(t, st.Put(ctx, "T1", v.Record()))

	rec := v.Record()
	done := make(chan struct{})
	go func() {
		reactor.HandleBatch(ctx, []tenant.Change{{
			Kind:     tenant.EventInsert,
			PK:       string(tenant.WithWorkspace("T1", rec.PK)),
			SK:       string(tenant.WithWorkspace("T1", rec.SK)),
			NewImage: rec.Fields,
		}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleBatch did not return: reactor wedged publishing into its own feed")
	}

	got, ok, err := st.Get(ctx, "T1", vacation.UserKey("U1"), vacation.VacationKey("v1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, string(vacation.StatusApproved), got.Field(vacation.FieldStatus))

	// The follow-on MODIFY is queued, not lost: draining the feed now must
	// deliver the approval notification.
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(runCtx, reactor.HandleBatch)
	eventually(t, func() bool {
		for _, m := range messenger.messagesTo("U1") {
			if strings.Contains(m.Text, "*approved*") {
				return true
			}
		}
		return false
	}, "queued MODIFY should still drive the outcome notification")
}

func TestReactor_DuplicateDeclinedDelivery_NoError(t *testing.T) {
	// Re-delivering the terminating MODIFY after the record is already gone
	// must not fail: the cascading delete of an absent key is a no-op.

	feed := tenant.NewFeed(16)
	st := tenant.NewStore(store.NewMemory(feed), discardLogger())
	messenger := newFakeMessenger()

	var mu sync.Mutex
	var reports int
	reactor := &vacation.Reactor{
		Store:     st,
		Directory: workspace.NewDirectory(st),
		Messenger: messenger,
		Log:       discardLogger(),
		Report: func(context.Context, string, error) {
			mu.Lock()
			reports++
			mu.Unlock()
		},
	}

	ctx := context.Background()
	declined := pendingVacation("T1", "U1", "v1", day(2024, time.April, 1), day(2024, time.April, 5))
	declined.Status = vacation.StatusDeclined
	rec := declined.Record()
	change := tenant.Change{
		Kind:     tenant.EventModify,
		PK:       string(tenant.WithWorkspace("T1", rec.PK)),
		SK:       string(tenant.WithWorkspace("T1", rec.SK)),
		NewImage: rec.Fields,
	}

	require.NoError(t, st.Put(ctx, "T1", rec))
	reactor.HandleBatch(ctx, []tenant.Change{change})
	reactor.HandleBatch(ctx, []tenant.Change{change})

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, reports, "re-delivery must not surface a failure")
}

// =============================================================================
// BATCH FAILURE ISOLATION
// =============================================================================

func TestReactor_PoisonRecord_DoesNotAbortBatch(t *testing.T) {
	// HandleBatch is driven directly here: one unreadable record followed by
	// a valid one. The valid record must still be processed and the failure
	// must reach the operations reporter.

	feed := tenant.NewFeed(16)
	st := tenant.NewStore(store.NewMemory(feed), discardLogger())
	messenger := newFakeMessenger()

	var mu sync.Mutex
	var reported []string
	reactor := &vacation.Reactor{
		Store:     st,
		Directory: workspace.NewDirectory(st),
		Messenger: messenger,
		Log:       discardLogger(),
		Report: func(_ context.Context, stage string, err error) {
			mu.Lock()
			reported = append(reported, fmt.Sprintf("%s: %v", stage, err))
			mu.Unlock()
		},
	}

	ctx := context.Background()
	require.NoError(t, workspace.NewDirectory(st).SaveDecisionMaker(ctx, "T1", "UBOSS"))

	good := pendingVacation("T1", "U1", "v-good", day(2024, time.May, 6), day(2024, time.May, 10))
	goodRec := good.Record()

	reactor.HandleBatch(ctx, []tenant.Change{
		{
			Kind: tenant.EventInsert,
			PK:   string(tenant.WithWorkspace("T1", vacation.UserKey("U1"))),
			SK:   string(tenant.WithWorkspace("T1", vacation.VacationKey("v-bad"))),
			NewImage: map[string]string{
				vacation.FieldUserID:    "U1",
				vacation.FieldVacation:  "v-bad",
				vacation.FieldStartDate: "not-a-date",
				vacation.FieldEndDate:   "2024-05-10",
			},
		},
		{
			Kind:     tenant.EventInsert,
			PK:       string(tenant.WithWorkspace("T1", goodRec.PK)),
			SK:       string(tenant.WithWorkspace("T1", goodRec.SK)),
			NewImage: goodRec.Fields,
		},
	})

	assert.Len(t, messenger.sentPrompts(), 1, "valid record processed despite the poison one")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0], "process_vacations")
}

func TestReactor_IgnoresForeignRecords(t *testing.T) {
	// Changes on user profiles and workspace singletons pass through the
	// reactor without side effects.

	feed := tenant.NewFeed(16)
	st := tenant.NewStore(store.NewMemory(feed), discardLogger())
	messenger := newFakeMessenger()
	reactor := &vacation.Reactor{
		Store:     st,
		Directory: workspace.NewDirectory(st),
		Messenger: messenger,
		Log:       discardLogger(),
	}

	reactor.HandleBatch(context.Background(), []tenant.Change{
		{
			Kind:     tenant.EventInsert,
			PK:       string(tenant.WithWorkspace("T1", vacation.UserKey("U1"))),
			SK:       string(tenant.WithWorkspace("T1", vacation.UserKey("U1"))),
			NewImage: map[string]string{vacation.FieldUserID: "U1", vacation.FieldUsername: "alice"},
		},
		{
			Kind: tenant.EventModify,
			PK:   string(tenant.WithWorkspace("T1", tenant.MakeKey(tenant.EntityDecisionMaker, ""))),
			SK:   string(tenant.WithWorkspace("T1", tenant.MakeKey(tenant.EntityDecisionMaker, ""))),
		},
	})

	assert.Empty(t, messenger.sentMessages())
	assert.Empty(t, messenger.sentPrompts())
}
