/*
messenger.go - Outbound notification boundary and message composition

The engine never talks to the chat platform directly. It depends on the
narrow capabilities below; the slack package provides the production
implementations and the tests substitute recording fakes.

Message texts live here rather than in the transport layer because the state
machine's contract includes WHAT gets said, not just that something is sent.
*/
package vacation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/vacation-engine/holiday"
)

// =============================================================================
// CAPABILITIES
// =============================================================================

// Messenger dispatches outbound notifications. Destinations are either a
// channel/user id within a workspace or a reply webhook URL. Failures are
// DeliveryErrors: the caller logs and reports them but never retries.
type Messenger interface {
	SendMessage(ctx context.Context, workspaceID, channelID, text string) error
	SendApprovalPrompt(ctx context.Context, workspaceID, channelID string, prompt ApprovalPrompt) error
	SendWebhookMessage(ctx context.Context, webhookURL, text string) error
}

// UserLookup resolves a user id to a display name.
type UserLookup interface {
	UserName(ctx context.Context, workspaceID, userID string) (string, error)
}

// ChannelLookup checks channel membership when configuration is saved.
type ChannelLookup interface {
	BotUserID(ctx context.Context, workspaceID string) (string, error)
	ChannelMembers(ctx context.Context, workspaceID, channelID string) ([]string, error)
}

// ApprovalPrompt is the interactive approve/decline request shown to the
// decision maker. Token rides along as the opaque correlation payload.
type ApprovalPrompt struct {
	RequesterName string
	Start         time.Time
	End           time.Time
	Token         DecisionToken
}

// =============================================================================
// MESSAGE TEXTS
// =============================================================================

const submittedText = "Vacation has been sent for approval :stuck_out_tongue_winking_eye::+1:"

func dateRange(v Vacation) string {
	return fmt.Sprintf("*%s - %s*", DisplayDate(v.Start), DisplayDate(v.End))
}

// outcomeText tells the requester the final status of their booking.
func outcomeText(v Vacation) string {
	return fmt.Sprintf("Your requested *vacation* for the following dates:\n\n%s\n\nwas *%s* %s",
		dateRange(v), strings.ToLower(string(v.Status)), statusResponses[v.Status])
}

// broadcastText announces an approved vacation to the team, decorated for
// the season of the start date.
func broadcastText(requesterName string, v Vacation) string {
	return fmt.Sprintf("@%s booked *vacation* for the following dates:\n\n%s\n\n%s",
		requesterName, dateRange(v), SeasonDecoration(v.Start))
}

// decisionConfirmationText acknowledges the decision maker's action on the
// reply webhook.
func decisionConfirmationText(username string, status Status) string {
	return fmt.Sprintf("Vacation for @%s was %s :ok_hand:", username, strings.ToLower(string(status)))
}

// rejectionText tells the requester why a booking was refused.
func rejectionText(err error) string {
	return fmt.Sprintf("Vacation *was not booked*, because it is invalid: %v :thinking_face:", err)
}

// summaryText lists a user's booked vacations with working-day accounting:
// a per-vacation count, the overall total and a per-year breakdown.
// vacations must already be sorted by start date.
func summaryText(username string, vacations []Vacation, cal holiday.Calendar) string {
	if len(vacations) == 0 {
		return fmt.Sprintf("%s doesn't have booked vacations :thinking_face:", username)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*@%s* booked vacations:\n\n", username)

	totalWorkingDays := 0
	workingDaysByYear := make(map[int]int)
	years := make([]int, 0, 2)

	for i, v := range vacations {
		days, byYear := WorkingDaysInRange(v.Start, v.End, cal)
		totalWorkingDays += days
		for year, n := range byYear {
			if workingDaysByYear[year] == 0 {
				years = append(years, year)
			}
			workingDaysByYear[year] += n
		}
		fmt.Fprintf(&sb, "*%d. %s*\t\t(%d working days)\n\n", i+1, dateRange(v), days)
	}

	fmt.Fprintf(&sb, "Total working days: *%d*\n", totalWorkingDays)
	for _, year := range years {
		fmt.Fprintf(&sb, "\t*%d* days in *%d* year\n", workingDaysByYear[year], year)
	}
	return sb.String()
}
