package auth

import (
	"fmt"

	"teamops/internal/domain"
)

// Capability names, used in ForbiddenError and API error details.
const (
	CapApprove        = "approve"
	CapReassign       = "reassign"
	CapEditPlaybook   = "edit_playbook"
	CapManageOrg      = "manage_org"
	CapDirectComplete = "direct_complete"
	CapDeleteTasks    = "delete_tasks"
	CapSendKudos      = "send_kudos"
	CapEditTask       = "edit_task"
)

// ForbiddenError indicates a missing capability.
type ForbiddenError struct {
	Capability string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("capability %s required", e.Capability)
}

// Capabilities is the set of role-gated actions, derived once from a role.
type Capabilities struct {
	CanApprove        bool `json:"can_approve"`
	CanReassign       bool `json:"can_reassign"`
	CanEditPlaybook   bool `json:"can_edit_playbook"`
	CanManageOrg      bool `json:"can_manage_org"`
	CanDirectComplete bool `json:"can_direct_complete"`
	CanDeleteTasks    bool `json:"can_delete_tasks"`
	CanSendKudos      bool `json:"can_send_kudos"`
	// SeesAllTasks widens the board beyond the viewer's own tasks.
	SeesAllTasks bool `json:"sees_all_tasks"`
}

func CapabilitiesFor(role string) Capabilities {
	if role != domain.RoleFounder {
		return Capabilities{}
	}
	return Capabilities{
		CanApprove:        true,
		CanReassign:       true,
		CanEditPlaybook:   true,
		CanManageOrg:      true,
		CanDirectComplete: true,
		CanDeleteTasks:    true,
		CanSendKudos:      true,
		SeesAllTasks:      true,
	}
}

// Require returns a ForbiddenError for capability unless allowed.
func Require(allowed bool, capability string) error {
	if allowed {
		return nil
	}
	return ForbiddenError{Capability: capability}
}
