// Copyright 2025 James Ross
package azuredevops

import "time"

// Detail is the subset of work-item fields C3 extracts from the detail
// endpoint. AssignedTo and the optional numeric fields mirror the upstream
// system's field naming under System.* and Microsoft.VSTS.*.
type Detail struct {
	ID          int64
	Title       string
	Type        string
	State       string
	AssignedTo  string
	CreatedDate time.Time
	ClosedDate  *time.Time
	Priority    int
	StoryPoints *float64
	EffortHours *float64
	Tags        []string
	Sprint      string
}
