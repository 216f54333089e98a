package state

import "path/filepath"

const defaultConfigFileName = "config.json"

// GlobalOptions contains global config values that apply for all marionette sub-commands.
type GlobalOptions struct {
	ConfigFilePath string
	NoColor        bool
	LogOutput      string
	LogFormat      string
	LogCategories  string
	Verbose        bool
}

// GetDefaultGlobalOptions returns the default global flags.
func GetDefaultGlobalOptions(confDir string) GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: filepath.Join(confDir, "marionette", defaultConfigFileName),
		LogOutput:      "stderr",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, env map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := env["MARIONETTE_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["MARIONETTE_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["MARIONETTE_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if val, ok := env["MARIONETTE_LOG_CATEGORIES"]; ok {
		result.LogCategories = val
	}
	if env["MARIONETTE_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if env["MARIONETTE_VERBOSE"] != "" {
		result.Verbose = true
	}
	return result
}
