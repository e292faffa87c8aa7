// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	stagingDomain "github.com/allisson/qbdrelay/internal/staging/domain"
)

// StageRecordsResponse reports how many payloads were accepted for staging.
type StageRecordsResponse struct {
	ObjectType string `json:"object_type"`
	Accepted   int    `json:"accepted"`
}

// NotificationsResponse groups drained notification identifiers by terminal
// status and by the message the destination reported.
type NotificationsResponse struct {
	Processed map[string][]string `json:"processed"`
	Failed    map[string][]string `json:"failed"`
}

// MapNotificationGroupsToResponse converts drained notification groups to an
// API response. Empty groups map to empty objects, not null.
func MapNotificationGroupsToResponse(groups stagingDomain.NotificationGroups) NotificationsResponse {
	response := NotificationsResponse{
		Processed: map[string][]string{},
		Failed:    map[string][]string{},
	}
	for message, ids := range groups.Processed {
		response.Processed[message] = ids
	}
	for message, ids := range groups.Failed {
		response.Failed[message] = ids
	}
	return response
}
