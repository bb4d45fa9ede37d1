package types

// Operation names the kind of change an Update records.
type Operation string

// Operations.
const (
	OperationNone Operation = "None"

	OperationCreateServer Operation = "CreateServer"
	OperationUpdateServer Operation = "UpdateServer"
	OperationDeleteServer Operation = "DeleteServer"

	OperationCreateBuild  Operation = "CreateBuild"
	OperationUpdateBuild  Operation = "UpdateBuild"
	OperationDeleteBuild  Operation = "DeleteBuild"
	OperationBuildBuild   Operation = "BuildBuild"
	OperationRecloneBuild Operation = "RecloneBuild"

	OperationCreateDeployment  Operation = "CreateDeployment"
	OperationUpdateDeployment  Operation = "UpdateDeployment"
	OperationDeleteDeployment  Operation = "DeleteDeployment"
	OperationDeployDeployment  Operation = "DeployDeployment"
	OperationStartDeployment   Operation = "StartDeployment"
	OperationStopDeployment    Operation = "StopDeployment"
	OperationRemoveDeployment  Operation = "RemoveDeployment"
	OperationPullDeployment    Operation = "PullDeployment"
	OperationRecloneDeployment Operation = "RecloneDeployment"

	OperationCreateRepo  Operation = "CreateRepo"
	OperationUpdateRepo  Operation = "UpdateRepo"
	OperationDeleteRepo  Operation = "DeleteRepo"
	OperationRecloneRepo Operation = "RecloneRepo"

	OperationCreateBuilder Operation = "CreateBuilder"
	OperationUpdateBuilder Operation = "UpdateBuilder"
	OperationDeleteBuilder Operation = "DeleteBuilder"

	OperationPruneImagesServer     Operation = "PruneImagesServer"
	OperationPruneContainersServer Operation = "PruneContainersServer"
	OperationPruneNetworksServer   Operation = "PruneNetworksServer"
)

// UpdateStatus is the lifecycle state of an Update.
type UpdateStatus string

// Update statuses.
const (
	UpdateQueued     UpdateStatus = "Queued"
	UpdateInProgress UpdateStatus = "InProgress"
	UpdateComplete   UpdateStatus = "Complete"
)

// Log is one stage of an operation's output.
type Log struct {
	Stage   string `json:"stage"`
	Command string `json:"command,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Success bool   `json:"success"`
	StartTS int64  `json:"start_ts,omitempty"`
	EndTS   int64  `json:"end_ts,omitempty"`
}

// SimpleLog returns a successful log with the given stage and stdout.
func SimpleLog(stage, stdout string) Log {
	return Log{Stage: stage, Stdout: stdout, Success: true}
}

// ErrorLog returns a failed log with the given stage and stderr.
func ErrorLog(stage, stderr string) Log {
	return Log{Stage: stage, Stderr: stderr, Success: false}
}

// AllLogsSuccess reports whether every log in the sequence succeeded.
// An empty sequence counts as success.
func AllLogsSuccess(logs []Log) bool {
	for _, l := range logs {
		if !l.Success {
			return false
		}
	}
	return true
}

// Update is the audit record of a single operation, assembled from the
// ordered per-stage logs of the work it drove.
type Update struct {
	ID        string         `json:"id"`
	Operation Operation      `json:"operation"`
	Target    ResourceTarget `json:"target"`
	StartTS   int64          `json:"start_ts"`
	EndTS     int64          `json:"end_ts,omitempty"`
	Status    UpdateStatus   `json:"status"`
	Success   bool           `json:"success"`
	Logs      []Log          `json:"logs,omitempty"`
	Operator  string         `json:"operator"`
	Version   *Version       `json:"version,omitempty"`
}

// DocID returns the document id. Implements store.Doc.
func (u *Update) DocID() string { return u.ID }

// SetDocID sets the document id. Implements store.Doc.
func (u *Update) SetDocID(id string) { u.ID = id }
