package api

import (
	"github.com/oceanplexian/gogios-cluster/internal/downtime"
	"github.com/oceanplexian/gogios-cluster/internal/logging"
	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// StateProvider gives the livestatus API access to all runtime state.
type StateProvider struct {
	Store     *objects.ObjectStore
	Global    *objects.GlobalState
	Comments  *downtime.CommentManager
	Downtimes *downtime.DowntimeManager
	Logger    *logging.Logger
	LogFile   string
}

// CommandSink is a callback for executing external commands from the API.
type CommandSink func(name string, args []string)

// CommandEntry is one parsed external command awaiting dispatch.
type CommandEntry struct {
	Name string
	Args []string
}

// BatchCommandSink is a callback that executes several commands in one call.
type BatchCommandSink func(cmds []CommandEntry)
