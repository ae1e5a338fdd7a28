// Package config loads cranky's settings.
//
// # Resolution order
//
//  1. Built-in defaults
//  2. ~/.config/cranky/config.toml, or the path given with --config
//  3. Environment variables, including any loaded from .env by LoadDotEnv
//
// A missing config file is not an error. Empty or out-of-range values fall
// back to the defaults. Tilde paths are expanded for data_dir, log_dir and
// collection_path.
//
// # TOML format
//
//	anki_connect_url = "http://127.0.0.1:8765"
//	collection_path = ""                  # read collection.anki2 directly when set
//	api_base = "https://api.cranky.app"
//	front_base = "https://cranky.app"
//	data_dir = "~/.local/share/cranky"    # export file, media, layout
//	log_dir = "~/.local/share/cranky/logs"
//	token_port = 7777
//	limit = 25
//	exclude_suspended = false
//	poll_interval_seconds = 2
//	max_polls = 1000
//
// # Environment
//
// CRANKY_ANKI_CONNECT_URL (or ANKI_CONNECT_URL), CRANKY_COLLECTION,
// CRANKY_API_BASE, CRANKY_FRONT_BASE, CRANKY_DATA_DIR, CRANKY_LOG_DIR,
// CRANKY_TOKEN_PORT, CRANKY_LIMIT, CRANKY_EXCLUDE_SUSPENDED,
// CRANKY_POLL_INTERVAL_SECONDS and CRANKY_MAX_POLLS override the file.
// COUPON_TOKEN is sent with media uploads. Malformed numeric or boolean
// values are reported as errors rather than ignored.
package config
