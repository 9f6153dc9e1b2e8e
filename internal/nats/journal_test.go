package nats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/expat-assistant/internal/render"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "transcript.abc.bot", EntrySubject("abc", transcript.RoleBot))
	assert.Equal(t, "transcript.abc.user", EntrySubject("abc", transcript.RoleUser))
	assert.Equal(t, "transcript.abc.>", SessionFilter("abc"))
}

func TestRecord_RoundTripsEntry(t *testing.T) {
	entries := transcript.New()
	e := entries.Append(transcript.RoleUser, render.UserText("NIE appointment"))

	data, err := json.Marshal(Record{SessionID: "abc", Entry: e})
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "abc", rec.SessionID)
	assert.Equal(t, e.ID, rec.Entry.ID)
	assert.Equal(t, "NIE appointment", rec.Entry.Content.Find(render.KindUserText, "").Text)
}
