package csredis

import (
	"context"
	"os"
	"testing"
	"time"

	"cantostudio/internal/models/csconfig"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient redis réel via REDIS_TEST_ADDR, sinon le test est ignoré
func testClient(t *testing.T) *DailyCounters {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR non défini")
	}
	client := NewClient(csconfig.RedisConfig{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return NewDailyCounters(client)
}

func TestNewClientDisabled(t *testing.T) {
	assert.Nil(t, NewClient(csconfig.RedisConfig{}))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cantostudio:events:2026-05-04", dailyKey("2026-05-04"))
	assert.Equal(t, "cantostudio:captcha:abc", captchaKey("abc"))
}

func TestParseCounts(t *testing.T) {
	counts, err := parseCounts(map[string]string{"SITE_VIEW": "12", "CLICK_SOBRE": "3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"SITE_VIEW": 12, "CLICK_SOBRE": 3}, counts)

	_, err = parseCounts(map[string]string{"SITE_VIEW": "x"})
	assert.Error(t, err)

	counts, err = parseCounts(nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestUnreachableServer(t *testing.T) {
	client := NewClient(csconfig.RedisConfig{Addr: "127.0.0.1:1"})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counters := NewDailyCounters(client)
	assert.Error(t, counters.Incr(ctx, "2026-05-04", "SITE_VIEW"))
	_, err := counters.Today(ctx, "2026-05-04")
	assert.Error(t, err)

	store := NewCaptchaStore(client)
	assert.False(t, store.Verify("id", "", true))
}

func TestDailyCountersIntegration(t *testing.T) {
	counters := testClient(t)
	ctx := context.Background()
	day := "test-" + uuid.NewString()
	t.Cleanup(func() { counters.client.Del(ctx, dailyKey(day)) })

	require.NoError(t, counters.Incr(ctx, day, "SITE_VIEW"))
	require.NoError(t, counters.Incr(ctx, day, "SITE_VIEW"))
	require.NoError(t, counters.Incr(ctx, day, "CLICK_AGENDAR"))

	counts, err := counters.Today(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["SITE_VIEW"])
	assert.Equal(t, int64(1), counts["CLICK_AGENDAR"])

	ttl, err := counters.client.TTL(ctx, dailyKey(day)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestCaptchaStoreIntegration(t *testing.T) {
	counters := testClient(t)
	store := NewCaptchaStore(counters.client)
	id := uuid.NewString()

	require.NoError(t, store.Set(id, "42"))
	assert.Equal(t, "42", store.Get(id, false))
	assert.False(t, store.Verify(id, "41", false))
	assert.True(t, store.Verify(id, "42", true))
	assert.Equal(t, "", store.Get(id, false))
}
