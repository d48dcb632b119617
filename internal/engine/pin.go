package engine

// PinnedPathArgs are the argument names that always resolve to the task's
// working directory, whatever the model supplied.
var PinnedPathArgs = []string{"cwd", "projectPath"}

// PinPaths returns a copy of call with every pinned path argument that is
// present overwritten by workDir. Absent arguments are not added.
func PinPaths(call ToolCall, workDir string) ToolCall {
	if len(call.Args) == 0 {
		return call
	}
	args := make(map[string]any, len(call.Args))
	for k, v := range call.Args {
		args[k] = v
	}
	for _, key := range PinnedPathArgs {
		if _, ok := args[key]; ok {
			args[key] = workDir
		}
	}
	call.Args = args
	return call
}
