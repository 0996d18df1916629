package smoketest

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestConfigFromLookup_Defaults(t *testing.T) {
	cfg := ConfigFromLookup(lookupFrom(nil))

	assert.Equal(t, "http://127.0.0.1:8080", cfg.APIBaseURL)
	assert.Equal(t, "https://api-mp3-player.ru", cfg.MainLandingURL)
	assert.Equal(t, "https://resume.api-mp3-player.ru", cfg.ResumeLandingURL)
	assert.Equal(t, "/health", cfg.HealthPath)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.Equal(t, 20, cfg.PollAttempts)
	assert.Equal(t, 2*time.Second, cfg.PollSleep)
	assert.Equal(t, 60*time.Second, cfg.longTimeout())
}

func TestConfigFromLookup_Overrides(t *testing.T) {
	cfg := ConfigFromLookup(lookupFrom(map[string]string{
		"POST_DEPLOY_TEST_API_BASE_URL":       "https://api.example.com/ ",
		"POST_DEPLOY_TEST_MAIN_LANDING_URL":   "",
		"POST_DEPLOY_TEST_RESUME_LANDING_URL": "https://cv.example.com/",
		"POST_DEPLOY_TEST_HEALTH_PATH":        "  ",
		"POST_DEPLOY_TEST_TIMEOUT_SECONDS":    "90",
		"POST_DEPLOY_TEST_POLL_ATTEMPTS":      "0",
		"POST_DEPLOY_TEST_POLL_SLEEP_SECONDS": "0.05",
	}))

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Empty(t, cfg.MainLandingURL, "explicitly empty landing disables the check")
	assert.Equal(t, "https://cv.example.com", cfg.ResumeLandingURL)
	assert.Equal(t, "/health", cfg.HealthPath)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 90*time.Second, cfg.longTimeout())
	assert.Equal(t, 20, cfg.PollAttempts)
	assert.Equal(t, minPollSleep, cfg.PollSleep)
}

func TestConfigFromLookup_FractionalSleep(t *testing.T) {
	cfg := ConfigFromLookup(lookupFrom(map[string]string{
		"POST_DEPLOY_TEST_POLL_SLEEP_SECONDS": "1.5",
		"POST_DEPLOY_TEST_POLL_ATTEMPTS":      "3",
	}))
	assert.Equal(t, 1500*time.Millisecond, cfg.PollSleep)
	assert.Equal(t, 3, cfg.PollAttempts)

	cfg = ConfigFromLookup(lookupFrom(map[string]string{"POST_DEPLOY_TEST_POLL_SLEEP_SECONDS": "soon"}))
	assert.Equal(t, 2*time.Second, cfg.PollSleep)
}

func TestSilentWAV(t *testing.T) {
	wav := silentWAV()
	require.Len(t, wav, 44+8000)

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(len(wav)-8), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]), "PCM")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(8000), binary.LittleEndian.Uint32(wav[40:44]))

	for _, b := range wav[44:] {
		if b != 0 {
			t.Fatal("expected silence")
		}
	}
}
