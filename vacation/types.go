// Package vacation implements the vacation lifecycle: booking validation,
// working-day accounting, and the reactive state machine that consumes the
// store's change feed and drives notifications and cascading mutations.
package vacation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/vacation-engine/tenant"
)

// =============================================================================
// DATES
// =============================================================================

// Dates are carried as "YYYY-MM-DD" strings on the wire and in storage, and
// as UTC-midnight time.Time values inside the engine.
const (
	DateFormat        = "2006-01-02"
	DateDisplayFormat = "02.01.2006"
)

// ParseDate parses a wire-format calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders a date in wire format.
func FormatDate(t time.Time) string { return t.Format(DateFormat) }

// DisplayDate renders a date the way users see it in messages (DD.MM.YYYY).
func DisplayDate(t time.Time) string { return t.Format(DateDisplayFormat) }

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
)

// statusResponses decorates the requester-outcome message per final status.
var statusResponses = map[Status]string{
	StatusDeclined: ":neutral_face:. Contact your manager to get more information.",
	StatusApproved: ":tada:. Have a good rest!",
}

// =============================================================================
// SEASONS - Decoration for team broadcasts, keyed by start month
// =============================================================================

type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

var seasonEmoji = map[Season]string{
	SeasonSummer: ":palm_tree::airplane::sun_with_face::umbrella_on_ground:",
	SeasonAutumn: ":maple_leaf::jack_o_lantern::coffee::fallen_leaf:",
	SeasonWinter: ":snowboarder::skin-tone-2::christmas_tree::snowman::snowflake:",
	SeasonSpring: ":bouquet::sun_with_face::strawberry::blossom:",
}

// SeasonOf maps a month to its season: Dec-Feb winter, Mar-May spring,
// Jun-Aug summer, Sep-Nov autumn.
func SeasonOf(month time.Month) Season {
	switch {
	case month < time.March || month == time.December:
		return SeasonWinter
	case month < time.June:
		return SeasonSpring
	case month < time.September:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// SeasonDecoration returns the emoji set broadcast with an approved vacation.
func SeasonDecoration(start time.Time) string {
	return seasonEmoji[SeasonOf(start.Month())]
}

// =============================================================================
// VACATION RECORD
// =============================================================================

// Stored field names for vacation and user records.
const (
	FieldUserID    = "user_id"
	FieldVacation  = "vacation_id"
	FieldStartDate = "vacation_start_date"
	FieldEndDate   = "vacation_end_date"
	FieldUsername  = "username"
	FieldStatus    = "vacation_status"
)

// Vacation is one requested time-off interval. Start and End are inclusive
// calendar dates.
type Vacation struct {
	WorkspaceID string
	UserID      string
	ID          string
	Username    string
	Start       time.Time
	End         time.Time
	Status      Status
}

// UserKey is the partition key grouping a user's vacations.
func UserKey(userID string) tenant.Key {
	return tenant.MakeKey(tenant.EntityUser, userID)
}

// VacationKey is the sort key of one vacation record.
func VacationKey(vacationID string) tenant.Key {
	return tenant.MakeKey(tenant.EntityVacation, vacationID)
}

// Record converts the vacation to its stored representation.
func (v Vacation) Record() tenant.Record {
	return tenant.Record{
		PK: UserKey(v.UserID),
		SK: VacationKey(v.ID),
		Fields: map[string]string{
			FieldUserID:    v.UserID,
			FieldVacation:  v.ID,
			FieldStartDate: FormatDate(v.Start),
			FieldEndDate:   FormatDate(v.End),
			FieldUsername:  v.Username,
			FieldStatus:    string(v.Status),
		},
	}
}

// FromFields rebuilds a vacation from a stored attribute map (a record image
// or a query result). Returns an error when the date fields are unreadable.
func FromFields(workspaceID string, fields map[string]string) (Vacation, error) {
	start, err := ParseDate(fields[FieldStartDate])
	if err != nil {
		return Vacation{}, err
	}
	end, err := ParseDate(fields[FieldEndDate])
	if err != nil {
		return Vacation{}, err
	}
	return Vacation{
		WorkspaceID: workspaceID,
		UserID:      fields[FieldUserID],
		ID:          fields[FieldVacation],
		Username:    fields[FieldUsername],
		Start:       start,
		End:         end,
		Status:      Status(fields[FieldStatus]),
	}, nil
}

// =============================================================================
// DECISION TOKEN - Opaque correlation payload on approval prompts
// =============================================================================

const decisionEvent = "vacation_decision"

// DecisionToken travels with the approve/decline prompt and comes back with
// the decision action, correlating it to one vacation.
type DecisionToken struct {
	Event      string `json:"event"`
	UserID     string `json:"user_id"`
	VacationID string `json:"vacation_id"`
}

// NewDecisionToken builds the token for a vacation awaiting decision.
func NewDecisionToken(userID, vacationID string) DecisionToken {
	return DecisionToken{Event: decisionEvent, UserID: userID, VacationID: vacationID}
}

// Encode renders the token as its JSON wire form.
func (t DecisionToken) Encode() string {
	data, _ := json.Marshal(t)
	return string(data)
}

// ParseDecisionToken decodes a token. ok is false for payloads that are not
// vacation decisions (foreign interactive elements share the same transport).
func ParseDecisionToken(raw string) (DecisionToken, bool) {
	var t DecisionToken
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return DecisionToken{}, false
	}
	if t.Event != decisionEvent || t.UserID == "" || t.VacationID == "" {
		return DecisionToken{}, false
	}
	return t, true
}
