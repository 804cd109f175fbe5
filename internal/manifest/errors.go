package manifest

import "errors"

// Sentinel and wrapped errors surfaced by Load, WorkspaceFrom, and Validate.
var (
	ErrInvalidManifest    = errors.New("invalid manifest")
	ErrNoRoot             = errors.New("workspace root not found")
	ErrDuplicateMember    = errors.New("duplicate package name in workspace")
	ErrDuplicateLinks     = errors.New("links value claimed by more than one package")
	ErrUnknownFeatureDep  = errors.New("feature references unknown dependency")
	ErrCyclicFeature      = errors.New("cyclic feature definition")
	ErrOptionalDevDep     = errors.New("dev-dependency cannot be optional")
	ErrInvalidFeatureName = errors.New("invalid feature name")
)
