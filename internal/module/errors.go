package module

import "fmt"

// StructureError reports a manifest that does not describe exactly one valid
// module: zero or multiple module blocks, or an unknown implementation key.
// The load is aborted with no registry change.
type StructureError struct {
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("module structure: %s", e.Reason)
}

// VersionError reports a malformed minimum-version requirement or a host
// version lower than the module requires.
type VersionError struct {
	Requirement string
	Host        string
	Reason      string
}

func (e *VersionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("module version: %s", e.Reason)
	}
	return fmt.Sprintf("module requires host %s, running %s", e.Requirement, e.Host)
}

// AlreadyLoadedError reports a name collision on a non-hot-reload load.
type AlreadyLoadedError struct {
	Name string
}

func (e *AlreadyLoadedError) Error() string {
	return fmt.Sprintf("module %q is already loaded", e.Name)
}

// CoreProtectedError reports a user-initiated unload of a built-in module.
type CoreProtectedError struct {
	Name string
}

func (e *CoreProtectedError) Error() string {
	return fmt.Sprintf("module %q is built-in and cannot be unloaded", e.Name)
}
