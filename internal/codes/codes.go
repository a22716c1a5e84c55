package codes

// ExitCodes maps cargo and rustc exit codes to their descriptions
var ExitCodes = map[int]string{
	-1:  "Terminated by a signal",
	0:   "Success",
	1:   "Build failed",
	2:   "Invalid command line",
	101: "Compilation failed",
	126: "Toolchain command is not executable",
	127: "Toolchain command not found",
	130: "Interrupted",
	137: "Killed",
	143: "Terminated",
}

// IsSuccess returns true if the exit code indicates a successful build
func IsSuccess(code int) bool {
	return code == 0
}

// GetErrorMessage returns the message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
