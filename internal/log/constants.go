package log

const (
	Action     = "action"
	Args       = "args"
	Board      = "board"
	Cmd        = "cmd"
	Commit     = "commit"
	DataMax    = "data_max"
	DataSize   = "data_size"
	Dir        = "dir"
	Duration   = "duration"
	Error      = "error"
	ExitCode   = "exit_code"
	Path       = "path"
	Pattern    = "pattern"
	ProgMax    = "program_max"
	ProgSize   = "program_size"
	Source     = "source"
	Stderr     = "stderr"
	Stdout     = "stdout"
	Target     = "target"
	TargetsNum = "action_count"
)
