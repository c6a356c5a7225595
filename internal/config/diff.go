package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked individually;
// everything else folds into RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ConversationChanged is true when the persona or decoding settings
	// changed. These apply from the next turn onward.
	ConversationChanged bool

	// VoiceChanged is true when the synthesis voice changed.
	VoiceChanged bool

	// RestartRequired is true when providers, audio tuning, or server
	// settings changed. These are bound at startup and cannot be swapped
	// under a live pipeline.
	RestartRequired bool
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ConversationChanged || d.VoiceChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oc, nc := old.Conversation, new.Conversation
	if oc.SystemPrompt != nc.SystemPrompt ||
		oc.MaxTokens != nc.MaxTokens ||
		oc.Temperature != nc.Temperature ||
		oc.HistoryLimit != nc.HistoryLimit {
		d.ConversationChanged = true
	}
	if oc.Voice != nc.Voice {
		d.VoiceChanged = true
	}

	if !providersEqual(old.Providers, new.Providers) ||
		old.Audio != new.Audio ||
		old.Server.ListenAddr != new.Server.ListenAddr ||
		!tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = true
	}
	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.LLM, b.LLM) && entryEqual(a.STT, b.STT) && entryEqual(a.TTS, b.TTS)
}

// entryEqual compares entries field by field; Options maps prevent plain
// struct comparison.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		if bv, ok := b.Options[k]; !ok || bv != v {
			return false
		}
	}
	if len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	for i := range a.Fallbacks {
		if !entryEqual(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
