package session

import "github.com/ebarros/parley/internal/config"

// DefaultSessionName is the session used when neither the -session flag
// nor ~/.parley/config.toml names one.
const DefaultSessionName = "main"

// Resolve picks the active session: an explicit flag override wins, then
// the config file's default_session, then DefaultSessionName.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
