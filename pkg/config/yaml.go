package config

// yamlHook is the intermediate struct for a hook kind declared in YAML.
type yamlHook struct {
	Name             string   `yaml:"name"`
	Selector         string   `yaml:"selector"`
	OpeningDelimiter string   `yaml:"opening_delimiter,omitempty"`
	ClosingDelimiter string   `yaml:"closing_delimiter,omitempty"`
	SelfClosing      bool     `yaml:"self_closing,omitempty"`
	AllowInputs      []string `yaml:"allow_inputs,omitempty"`
	DenyInputs       []string `yaml:"deny_inputs,omitempty"`
	AllowOutputs     []string `yaml:"allow_outputs,omitempty"`
	DenyOutputs      []string `yaml:"deny_outputs,omitempty"`
}

// yamlConfig represents the top-level structure of a config file.
type yamlConfig struct {
	AllowContextInBindings    bool       `yaml:"allow_context_in_bindings"`
	AllowContextFunctionCalls bool       `yaml:"allow_context_function_calls"`
	UnescapeStrings           bool       `yaml:"unescape_strings"`
	CompareByValue            bool       `yaml:"compare_by_value"`
	CompareByValueDepth       int        `yaml:"compare_by_value_depth"`
	UpdateOnPushOnly          bool       `yaml:"update_on_push_only"`
	Hooks                     []yamlHook `yaml:"hooks"`
}
