package domain

import "fmt"

// WorkflowState is one step of the deployment workflow state machine. States
// advance in declaration order; skips forward are allowed, skips backward are
// not, and Failed is reachable from any state.
type WorkflowState int

const (
	WorkflowStateInitialized WorkflowState = iota
	WorkflowStateProjectLoaded
	WorkflowStateRepoCreated
	WorkflowStateFilesUploaded
	WorkflowStateDeploying
	WorkflowStateComplete
	WorkflowStateFailed
)

func (s WorkflowState) String() string {
	switch s {
	case WorkflowStateInitialized:
		return "initialized"
	case WorkflowStateProjectLoaded:
		return "project_loaded"
	case WorkflowStateRepoCreated:
		return "github_repo_created"
	case WorkflowStateFilesUploaded:
		return "github_files_uploaded"
	case WorkflowStateDeploying:
		return "deploying"
	case WorkflowStateComplete:
		return "deployment_complete"
	case WorkflowStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func ParseWorkflowState(s string) (WorkflowState, error) {
	switch s {
	case "initialized":
		return WorkflowStateInitialized, nil
	case "project_loaded":
		return WorkflowStateProjectLoaded, nil
	case "github_repo_created":
		return WorkflowStateRepoCreated, nil
	case "github_files_uploaded":
		return WorkflowStateFilesUploaded, nil
	case "deploying":
		return WorkflowStateDeploying, nil
	case "deployment_complete":
		return WorkflowStateComplete, nil
	case "failed":
		return WorkflowStateFailed, nil
	default:
		return WorkflowStateFailed, fmt.Errorf("invalid workflow state: %q", s)
	}
}

// CanTransition reports whether moving from s to next is a legal step.
func (s WorkflowState) CanTransition(next WorkflowState) bool {
	if next == WorkflowStateFailed {
		return true
	}
	if s == WorkflowStateFailed || s == WorkflowStateComplete {
		return false
	}
	return next > s
}
