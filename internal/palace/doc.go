// Package palace is the HTTP client for the memory-palace service.
//
// A run creates a scene from a card batch (POST /v2/generate_scene), uploads
// the batch's media (POST /upload_media/{session}), then polls
// GET /v2/status/{session} until the reported status contains "complete".
// The legacy flow additionally publishes a static viewer page with
// POST /generate_viewer.
//
// Once the user has signed in, every request carries the token as a bearer
// credential. Non-2xx responses are returned as *APIError so callers can
// tell HTTP failures from transport failures.
package palace
