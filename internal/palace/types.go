package palace

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// SceneRequest is the body of a scene generation call. Cards is any JSON
// encodable batch, normally []export.Card.
type SceneRequest struct {
	Theme     string `json:"theme"`
	Cards     any    `json:"cards"`
	DeckName  string `json:"deck_name,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Scene is a created session with the layout the service returned.
type Scene struct {
	SessionID string
	Layout    json.RawMessage
}

// HasObjects reports whether the layout places at least one object.
func (s Scene) HasObjects() bool {
	var body struct {
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(s.Layout, &body); err != nil {
		return false
	}
	return len(body.Objects) > 0
}

// Status is a session progress report.
type Status struct {
	Status string `json:"status"`
}

// Complete reports whether the service has finished the session.
func (s Status) Complete() bool {
	return strings.Contains(strings.ToLower(s.Status), "complete")
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api %s returned status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.StatusCode, e.Body)
}

// DashboardURL is the web dashboard address, signed in with token when one
// is given.
func DashboardURL(frontBase, token string) string {
	base := frontRoot(frontBase)
	if strings.TrimSpace(token) == "" {
		return base + "/"
	}
	return base + "/?token=" + url.QueryEscape(token)
}

// LoginURL is the page that signs the user in and posts the token back to
// the local listener.
func LoginURL(frontBase string) string {
	return frontRoot(frontBase) + "/login?from_anki=true"
}

func frontRoot(frontBase string) string {
	base := strings.TrimRight(strings.TrimSpace(frontBase), "/")
	if base == "" {
		base = DefaultFrontBase
	}
	return base
}
