package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	playerv1 "github.com/osa030/abetube/internal/api/playerv1"
)

func TestFormatUpdate(t *testing.T) {
	tr := &playerv1.Track{Title: "Song", Channel: "Artist", DurationSeconds: 125}

	tests := []struct {
		name   string
		update playerv1.StatusUpdate
		want   string
	}{
		{"snapshot idle", playerv1.StatusUpdate{Type: playerv1.UpdateSnapshot, State: "idle"}, "[idle] nothing selected"},
		{"snapshot playing", playerv1.StatusUpdate{Type: playerv1.UpdateSnapshot, State: "playing", Index: 1, Track: tr}, "[playing] #1 Song - Artist"},
		{"metadata", playerv1.StatusUpdate{Type: "metadata", Index: 2, Track: tr}, "now: #2 Song - Artist [2:05]"},
		{"progress", playerv1.StatusUpdate{Type: "progress", Position: 61, Duration: 125}, "  1:01 / 2:05"},
		{"progress live", playerv1.StatusUpdate{Type: "progress", Position: 5}, "  0:05 / live"},
		{"failure", playerv1.StatusUpdate{Type: "failure", Failure: "resolve", Message: "Error fetching video info"}, "failure (resolve): Error fetching video info"},
		{"state", playerv1.StatusUpdate{Type: "state_changed", State: "paused"}, "state: paused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUpdate(&tt.update))
		})
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &playerv1.Status{
		State:        "playing",
		Query:        "lofi",
		Index:        0,
		Track:        &playerv1.Track{Title: "Song", Channel: "Artist"},
		Tracks:       []playerv1.Track{{Title: "Song"}},
		Position:     30,
		Duration:     0,
		Engine:       "secondary",
		FallbackUsed: true,
		Message:      "Playback error",
	})

	out := buf.String()
	assert.Contains(t, out, "State: playing")
	assert.Contains(t, out, "Query: lofi")
	assert.Contains(t, out, "Progress: 0:30 / live")
	assert.Contains(t, out, "Engine: secondary (fallback source)")
	assert.Contains(t, out, "Message: Playback error")
}

func TestPrintSearch(t *testing.T) {
	var buf bytes.Buffer
	printSearch(&buf, &playerv1.SearchResponse{
		Query:    "lofi",
		Provider: "YouTube",
		Tracks: []playerv1.Track{
			{Title: "One", Channel: "Ch", DurationSeconds: 125},
			{Title: "Radio", Channel: "Ch"},
		},
		TotalSeconds: 125,
	})
	assert.Equal(t, "Results for \"lofi\" from YouTube (2, 2:05 total):\n"+
		"   0. One - Ch [2:05]\n"+
		"   1. Radio - Ch [live]\n", buf.String())

	buf.Reset()
	printSearch(&buf, &playerv1.SearchResponse{Query: "zzz", Message: "No results"})
	assert.Equal(t, "No results\n", buf.String())
}
