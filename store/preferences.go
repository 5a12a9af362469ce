package store

import (
	"github.com/apex/log"

	"ollama_relay/models"
)

// DefaultModel is the model selected when nothing else is configured
const DefaultModel = "llama3.2:latest"

// Preferences groups the UI preference values
type Preferences struct {
	DarkMode      *Value[bool]
	SelectedModel *Value[string]
}

// NewPreferences creates the preference values and logs every change at debug
// level. An empty model falls back to DefaultModel.
func NewPreferences(darkMode bool, selectedModel string) *Preferences {
	if selectedModel == "" {
		selectedModel = DefaultModel
	}
	p := &Preferences{
		DarkMode:      NewValue(darkMode),
		SelectedModel: NewValue(selectedModel),
	}

	p.DarkMode.Subscribe(func(v bool) {
		log.WithField("darkMode", v).Debug("preference set")
	})
	p.SelectedModel.Subscribe(func(v string) {
		log.WithField("selectedModel", v).Debug("preference set")
	})
	return p
}

// Snapshot returns the current values
func (p *Preferences) Snapshot() models.Preferences {
	return models.Preferences{
		DarkMode:      p.DarkMode.Get(),
		SelectedModel: p.SelectedModel.Get(),
	}
}

// Apply sets the fields present in update
func (p *Preferences) Apply(update models.PreferencesUpdate) {
	if update.DarkMode != nil {
		p.DarkMode.Set(*update.DarkMode)
	}
	if update.SelectedModel != nil {
		p.SelectedModel.Set(*update.SelectedModel)
	}
}
