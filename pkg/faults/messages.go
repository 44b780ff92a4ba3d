package faults

const fallbackUserMessage = "An issue was encountered, please check technical details or contact support."

var userMessages = map[Category]map[Severity]string{
	CategoryPluginComm: {
		SeverityHigh:   "There's a problem connecting to the CAD plugin, please ensure the CAD application is running and the plugin is started.",
		SeverityMedium: "Plugin communication temporarily interrupted, system is attempting to reconnect.",
		SeverityLow:    "Minor plugin communication issue, but doesn't affect main functionality.",
	},
	CategoryHostAPI: {
		SeverityHigh:   "CAD operation failed, please check design document status.",
		SeverityMedium: "Some CAD features are temporarily unavailable, please try again later.",
		SeverityLow:    "CAD operation encountered a minor issue, automatically handled.",
	},
	CategoryValidation: {
		SeverityMedium: "Input parameters are incorrect, please check and correct parameter values.",
		SeverityLow:    "Data format needs adjustment, please refer to suggestions for corrections.",
	},
	CategoryResource: {
		SeverityHigh:   "Unable to access necessary resources, please check file permissions and paths.",
		SeverityMedium: "Resource access restricted, some features may be unavailable.",
		SeverityLow:    "Resource access encountered a minor issue, automatically handled.",
	},
}

var recoverySuggestions = map[Category][]string{
	CategoryPluginComm: {
		"Ensure the CAD application is running",
		"Check if plugin is started",
		"Restart the CAD plugin",
		"Check firewall settings",
	},
	CategoryHostAPI: {
		"Check if active design document exists",
		"Save current work",
		"Reload design",
		"Check CAD license status",
	},
	CategoryValidation: {
		"Check input parameter format and range",
		"Refer to API documentation for parameter requirements",
		"Test with default values",
	},
	CategoryResource: {
		"Check file and directory permissions",
		"Verify path is correct",
		"Clean up temporary files",
		"Check disk space",
	},
	CategoryNetwork: {
		"Check network connection",
		"Retry operation",
		"Check proxy settings",
	},
}

// UserMessage returns the end-user text for a category and severity.
func UserMessage(c Category, s Severity) string {
	if msg, ok := userMessages[c][s]; ok {
		return msg
	}
	return fallbackUserMessage
}

// RecoverySuggestions returns the suggested remedies for a category.
func RecoverySuggestions(c Category) []string {
	if s, ok := recoverySuggestions[c]; ok {
		out := make([]string, len(s))
		copy(out, s)
		return out
	}
	return []string{"Contact technical support"}
}
