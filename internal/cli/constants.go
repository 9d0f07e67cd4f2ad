package cli

// Default values for CLI flags and formatted output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// DateLayout formats calendar days in command output.
	DateLayout = "2006-01-02"
)
