package cli

// RunWithWriter runs the app writing command output to w
var RunWithWriter = run

// ParseFields is exported for testing
var ParseFields = parseFields
