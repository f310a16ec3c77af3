package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerHandleAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	c := NewConsumer("amqp://unused", path, nil)

	require.NoError(t, c.Handle([]byte(`{"booking_id":"101","showtime_id":7,"movie_title":"Dune","seats":["A1","A2"],"total_amount_cents":2500,"confirmed_at":"2026-01-02T10:00:00Z"}`)))
	require.NoError(t, c.Handle([]byte(`{"booking_id":"102","payment_session":"cs_1","seats":[],"confirmed_at":"2026-01-02T10:05:00Z"}`)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "booking_id=101 | via=direct | showtime_id=7")
	assert.Contains(t, lines[0], `movie="Dune"`)
	assert.Contains(t, lines[0], "total=2500 cents | seats=[A1,A2]")
	assert.Contains(t, lines[1], "via=payment:cs_1")
	assert.Contains(t, lines[1], "total=unknown | seats=[]")
}

func TestConsumerHandleRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booking.log")
	c := NewConsumer("amqp://unused", path, nil)

	testCases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no booking id", `{"showtime_id":7}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, c.Handle([]byte(tc.body)))
		})
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
