package loader

// Document is the serialized form of a workflow definition.
// It uses "mapstructure" tags so YAML keys and loose scalars (a single "from"
// state instead of a list) decode the same way.
type Document struct {
	Name         string               `mapstructure:"name" yaml:"name"`
	EntityType   string               `mapstructure:"entity_type" yaml:"entity_type"`
	InitialState string               `mapstructure:"initial_state" yaml:"initial_state"`
	States       []string             `mapstructure:"states" yaml:"states"`
	Transitions  []TransitionDocument `mapstructure:"transitions" yaml:"transitions"`
	Metadata     map[string]any       `mapstructure:"metadata" yaml:"metadata,omitempty"`
}

// TransitionDocument is the serialized form of a transition.
type TransitionDocument struct {
	Event    string         `mapstructure:"event" yaml:"event"`
	From     []string       `mapstructure:"from" yaml:"from"`
	To       string         `mapstructure:"to" yaml:"to"`
	Guards   []string       `mapstructure:"guards" yaml:"guards,omitempty"`
	Hooks    HooksDocument  `mapstructure:"hooks" yaml:"hooks,omitempty"`
	Metadata map[string]any `mapstructure:"metadata" yaml:"metadata,omitempty"`
}

// HooksDocument lists hook names per phase.
type HooksDocument struct {
	Before []string `mapstructure:"before" yaml:"before,omitempty"`
	After  []string `mapstructure:"after" yaml:"after,omitempty"`
}
