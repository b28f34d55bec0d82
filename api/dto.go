package api

// Request/response shapes for the HTTP surface. Dates travel as YYYY-MM-DD.

type registerWorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id"`
	AccessToken string `json:"access_token"`
}

type configureWorkspaceRequest struct {
	DecisionMakerUserID    string `json:"decision_maker_user_id"`
	NotificationsChannelID string `json:"notifications_channel_id"`
}

type bookVacationRequest struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type bookVacationResponse struct {
	VacationID string `json:"vacation_id"`
	Status     string `json:"status"`
}

// decisionRequest carries an approve/decline action. The correlation payload
// may arrive parsed (payload) or as the raw token from the interactive
// element's block id (block_id); payload wins when both are present.
type decisionRequest struct {
	WorkspaceID string `json:"workspace_id"`
	ActionID    string `json:"action_id"`
	Payload     struct {
		UserID     string `json:"user_id"`
		VacationID string `json:"vacation_id"`
	} `json:"payload"`
	BlockID     string `json:"block_id"`
	Status      string `json:"status"`
	ResponseURL string `json:"response_url"`
}

type summaryResponse struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type eventCallbackRequest struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
