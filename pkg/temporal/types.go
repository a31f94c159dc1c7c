package temporal

import "fmt"

const DefaultNamespace = "chanalytics"

// SyncQueue carries the replication and refresh workflows.
const SyncQueue = "sync"

// Registered workflow names.
const (
	ReplicationWorkflowName = "ReplicationWorkflow"
	RefreshWorkflowName     = "RefreshWorkflow"
)

// Workflow IDs. A single replication ID lets concurrent triggers share the
// running resync instead of starting overlapping ones.
const (
	WorkflowIDReplication = "replication"
	WorkflowIDRefresh     = "refresh:%s"
)

// RefreshWorkflowID returns the refresh workflow ID for a trigger source
// ("cron", "api").
func RefreshWorkflowID(trigger string) string {
	return fmt.Sprintf(WorkflowIDRefresh, trigger)
}
