package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{" WARN ", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"loud", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := NewWithOutput(&buf, "info", "json")
	require.NoError(t, err)

	l.WithField("instrument", "AAA").Debug("hidden")
	l.WithField("instrument", "AAA").Info("opened")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "opened", entry["msg"])
	assert.Equal(t, "AAA", entry["instrument"])
}

func TestBadFormat(t *testing.T) {
	t.Parallel()

	_, err := New("info", "xml")
	assert.Error(t, err)
}
