package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestConfigLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		conf Config
		want zerolog.Level
	}{
		{Config{}, zerolog.InfoLevel},
		{Config{Debug: true}, zerolog.DebugLevel},
		{Config{Level: "WARN"}, zerolog.WarnLevel},
		{Config{Debug: true, Level: "error"}, zerolog.ErrorLevel},
		{Config{Debug: true, Level: "nonsense"}, zerolog.DebugLevel},
	}
	for _, tc := range cases {
		if got := tc.conf.level(); got != tc.want {
			t.Fatalf("level(%+v) = %s, want %s", tc.conf, got, tc.want)
		}
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() {
		Output = prev
		Init()
	})

	Init(Config{Debug: true})
	log.Debug().Str("session_id", "s-1").Msg("turn completed")

	out := buf.String()
	if !strings.Contains(out, `"session_id":"s-1"`) || !strings.Contains(out, `"level":"debug"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}
