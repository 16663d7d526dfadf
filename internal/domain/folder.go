package domain

import "time"

// Folder is one node of a materialized-path tree. The same shape backs
// all four families (flows, test cases, variables, elements); Status is
// meaningful only for the test-case family and reads ACTIVE elsewhere.
type Folder struct {
	ID        string
	ProjectID string
	ParentID  *string
	Name      string
	Path      string
	Status    FolderStatus
	CreatedAt time.Time
}

// ChildPath builds the path a folder named name would have under f.
func (f Folder) ChildPath(name string) string {
	return f.Path + "/" + name
}
