package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanJobTransition(t *testing.T) {
	allowed := [][2]string{
		{JobStatusOpen, JobStatusInProgress},
		{JobStatusOpen, JobStatusCancelled},
		{JobStatusInProgress, JobStatusCompleted},
		{JobStatusInProgress, JobStatusDisputed},
	}
	for _, edge := range allowed {
		require.True(t, CanJobTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	forbidden := [][2]string{
		{JobStatusOpen, JobStatusCompleted},
		{JobStatusInProgress, JobStatusOpen},
		{JobStatusInProgress, JobStatusCancelled},
		{JobStatusCompleted, JobStatusOpen},
		{JobStatusCancelled, JobStatusInProgress},
		{JobStatusDisputed, JobStatusCompleted},
	}
	for _, edge := range forbidden {
		require.False(t, CanJobTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestDeriveAssignmentStatus(t *testing.T) {
	meeting := time.Date(2025, 6, 4, 14, 0, 0, 0, time.UTC)

	before := meeting.Add(-2 * time.Hour)
	after := meeting.Add(2 * time.Hour)

	require.Equal(t, AssignmentStatusUpcoming,
		DeriveAssignmentStatus(AssignmentStatusUpcoming, meeting, before))
	require.Equal(t, AssignmentStatusInProgress,
		DeriveAssignmentStatus(AssignmentStatusUpcoming, meeting, after))
	require.Equal(t, AssignmentStatusInProgress,
		DeriveAssignmentStatus(AssignmentStatusUpcoming, meeting, meeting))

	// completed never regresses, whatever the clock says
	require.Equal(t, AssignmentStatusCompleted,
		DeriveAssignmentStatus(AssignmentStatusCompleted, meeting, before))
	require.Equal(t, AssignmentStatusCompleted,
		DeriveAssignmentStatus(AssignmentStatusCompleted, meeting, after))
}

func TestQuoteExpired(t *testing.T) {
	validUntil := time.Date(2025, 6, 3, 23, 59, 59, 0, time.UTC)
	q := &Quote{ValidUntil: validUntil}

	require.False(t, q.Expired(validUntil.Add(-time.Minute)))
	require.False(t, q.Expired(validUntil))
	require.True(t, q.Expired(validUntil.Add(time.Second)))
}

func TestValidMeetingType(t *testing.T) {
	for _, m := range MeetingTypes {
		require.True(t, ValidMeetingType(m))
	}
	require.False(t, ValidMeetingType("board_meeting"))
	require.False(t, ValidMeetingType(""))
}
