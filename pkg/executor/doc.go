// Package executor implements remote command execution against
// managed hosts over a pooled transport. The orchestrator never
// assumes any persistent agent state between calls — every call
// uploads or references the same single-file agent and runs it with
// arguments and optional stdin.
package executor
