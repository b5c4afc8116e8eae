package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	rec := AuditRecord{
		CacheKey:   "grid_32.70_-117.20_2.0_15",
		Source:     "NOAA MUR SST",
		CenterLat:  32.7,
		CenterLon:  -117.2,
		RegionSize: 2.0,
		Resolution: 15,
		DataPoints: 218,
		FetchedAt:  time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC),
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte(rec.CacheKey), msg.Key)

	var decoded AuditRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, rec, decoded)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "NOAA MUR SST", headers["source"])
	assert.Equal(t, "2026-08-30T14:05:00Z", headers["fetched_at"])
}

func TestSerializeToMessage_OmitsEmptyDate(t *testing.T) {
	msg, err := serializeToMessage(AuditRecord{CacheKey: "grid_0.00_0.00_2.0_10"})
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), `"date"`)
}
