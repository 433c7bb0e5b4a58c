package gate

import "github.com/inkpress-cms/mediakeeper/pkg/enums"

// Operation names every call the gate guards.
type Operation string

const (
	OperationViewAssets     Operation = "assets.view"
	OperationSearchAssets   Operation = "assets.search"
	OperationUploadAsset    Operation = "assets.upload"
	OperationViewUsage      Operation = "assets.usage"
	OperationViewStats      Operation = "assets.stats"
	OperationReconcileRefs  Operation = "references.reconcile"
	OperationVerifyOrphans  Operation = "cleanup.verify"
	OperationRunCleanup     Operation = "cleanup.run"
	OperationViewOperations Operation = "cleanup.operations"
	OperationViewMonitor    Operation = "monitor.view"
	OperationManageSchedule Operation = "schedules.manage"
	OperationViewSchedule   Operation = "schedules.view"
	OperationViewAudit      Operation = "audit.view"
)

// Class buckets operations into rate-limit windows.
type Class string

const (
	ClassView    Class = "view"
	ClassUpload  Class = "upload"
	ClassMutate  Class = "mutate"
	ClassCleanup Class = "cleanup"
)

// permissionsByRole is the static role matrix. Each role strictly extends
// the one below it.
var permissionsByRole = func() map[enums.ActorRole]map[Operation]struct{} {
	grants := map[enums.ActorRole][]Operation{
		enums.ActorRoleViewer: {
			OperationViewAssets,
			OperationSearchAssets,
			OperationViewUsage,
		},
		enums.ActorRoleContributor: {
			OperationUploadAsset,
			OperationReconcileRefs,
		},
		enums.ActorRoleEditor: {
			OperationViewStats,
			OperationVerifyOrphans,
			OperationViewOperations,
			OperationViewSchedule,
			OperationViewMonitor,
		},
		enums.ActorRoleAdmin: {
			OperationRunCleanup,
			OperationManageSchedule,
			OperationViewAudit,
		},
		enums.ActorRoleOwner: {},
	}

	order := []enums.ActorRole{
		enums.ActorRoleViewer,
		enums.ActorRoleContributor,
		enums.ActorRoleEditor,
		enums.ActorRoleAdmin,
		enums.ActorRoleOwner,
	}

	out := make(map[enums.ActorRole]map[Operation]struct{}, len(order))
	inherited := map[Operation]struct{}{}
	for _, role := range order {
		for _, op := range grants[role] {
			inherited[op] = struct{}{}
		}
		set := make(map[Operation]struct{}, len(inherited))
		for op := range inherited {
			set[op] = struct{}{}
		}
		out[role] = set
	}
	return out
}()

// classByOperation maps operations to rate-limit classes.
var classByOperation = map[Operation]Class{
	OperationViewAssets:     ClassView,
	OperationSearchAssets:   ClassView,
	OperationViewUsage:      ClassView,
	OperationViewStats:      ClassView,
	OperationViewOperations: ClassView,
	OperationViewMonitor:    ClassView,
	OperationViewSchedule:   ClassView,
	OperationViewAudit:      ClassView,
	OperationUploadAsset:    ClassUpload,
	OperationReconcileRefs:  ClassMutate,
	OperationVerifyOrphans:  ClassMutate,
	OperationManageSchedule: ClassMutate,
	OperationRunCleanup:     ClassCleanup,
}

// Allowed reports whether the role's permission set contains the operation.
func Allowed(role enums.ActorRole, op Operation) bool {
	set, ok := permissionsByRole[role]
	if !ok {
		return false
	}
	_, ok = set[op]
	return ok
}

// ClassOf returns the rate-limit class of an operation, defaulting to the
// mutate class for anything unmapped.
func ClassOf(op Operation) Class {
	if class, ok := classByOperation[op]; ok {
		return class
	}
	return ClassMutate
}

// Mutating reports whether the operation requires an audit record.
func Mutating(op Operation) bool {
	switch ClassOf(op) {
	case ClassUpload, ClassMutate, ClassCleanup:
		return true
	default:
		return false
	}
}
