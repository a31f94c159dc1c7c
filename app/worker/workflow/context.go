package workflow

import (
	"github.com/canopy-network/chanalytics/app/worker/activity"
)

// Context holds dependencies for the sync workflows.
type Context struct {
	ActivityContext *activity.Context
}
