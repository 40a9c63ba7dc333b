package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapTranscript(t *testing.T) {
	t.Run("title from file name", func(t *testing.T) {
		meetingTitle = ""
		body, err := wrapTranscript("/tmp/weekly-sync.txt", []byte("Alice: hello"))
		require.NoError(t, err)

		var payload struct {
			Title      string `json:"title"`
			Transcript struct {
				SpeakerBlocks []struct {
					Words string `json:"words"`
				} `json:"speaker_blocks"`
			} `json:"transcript"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "weekly-sync", payload.Title)
		require.Len(t, payload.Transcript.SpeakerBlocks, 1)
		assert.Equal(t, "Alice: hello", payload.Transcript.SpeakerBlocks[0].Words)
	})

	t.Run("explicit title wins", func(t *testing.T) {
		meetingTitle = "Q3 planning"
		defer func() { meetingTitle = "" }()

		body, err := wrapTranscript("-", []byte("raw"))
		require.NoError(t, err)

		var payload struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "Q3 planning", payload.Title)
	})

	t.Run("stdin without title", func(t *testing.T) {
		meetingTitle = ""
		body, err := wrapTranscript("-", []byte("raw"))
		require.NoError(t, err)

		var payload struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "Untitled meeting", payload.Title)
	})
}
