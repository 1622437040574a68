package types

import "time"

// DefaultProfile is the profile assigned to steps that do not name one.
const DefaultProfile = "default"

// StepSpec describes one named unit of work in a workflow.
type StepSpec struct {
	Name      string   `yaml:"name" toml:"name" json:"name" validate:"required,identifier"`
	Prompt    string   `yaml:"prompt" toml:"prompt" json:"prompt" validate:"required"`
	Profile   string   `yaml:"profile,omitempty" toml:"profile,omitempty" json:"profile,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty" toml:"depends_on,omitempty" json:"depends_on,omitempty" validate:"dive,required"`

	// TimeoutSeconds bounds a single dispatch. Zero means the caller's default.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty,omitzero" json:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// Timeout returns the step timeout, or def when none is set.
func (s StepSpec) Timeout(def time.Duration) time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return def
}

// ProfileOr returns the step profile, or def when none is set.
func (s StepSpec) ProfileOr(def string) string {
	if s.Profile != "" {
		return s.Profile
	}
	if def != "" {
		return def
	}
	return DefaultProfile
}

// WorkflowDefinition is the immutable description of a workflow.
// Steps keep their declaration order, which drives ordering within layers.
type WorkflowDefinition struct {
	Name        string     `yaml:"name" toml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Steps       []StepSpec `yaml:"steps" toml:"steps" json:"steps,omitempty"`
}

// Step returns the step with the given name.
func (d *WorkflowDefinition) Step(name string) (StepSpec, bool) {
	for _, s := range d.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepSpec{}, false
}

// StepNames returns step names in declaration order.
func (d *WorkflowDefinition) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}
	return names
}

// WithDefaults returns a copy with empty profiles set to profile.
func (d WorkflowDefinition) WithDefaults(profile string) WorkflowDefinition {
	steps := make([]StepSpec, len(d.Steps))
	for i, s := range d.Steps {
		s.Profile = s.ProfileOr(profile)
		s.DependsOn = append([]string(nil), s.DependsOn...)
		steps[i] = s
	}
	d.Steps = steps
	return d
}
