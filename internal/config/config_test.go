package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/dumpdb/internal/minidump"
)

func TestParseStreamFilterEntry(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		want    uint32
		wantErr bool
	}{
		{name: "well-known name", entry: "ThreadList", want: minidump.ThreadListStream},
		{name: "decimal tag", entry: "4", want: 4},
		{name: "hex tag", entry: "0x10", want: 16},
		{name: "unknown name", entry: "ThreadLost", wantErr: true},
		{name: "negative", entry: "-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStreamFilterEntry(tt.entry)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreamFilter(t *testing.T) {
	cfg := &Config{Streams: []string{"ThreadList", "ModuleList", "7"}}
	filter, err := cfg.StreamFilter()
	require.NoError(t, err)

	assert.True(t, filter[minidump.ThreadListStream])
	assert.True(t, filter[minidump.ModuleListStream])
	assert.True(t, filter[minidump.SystemInfoStream])
	assert.False(t, filter[minidump.MemoryListStream])
}

func TestStreamFilterEmpty(t *testing.T) {
	cfg := &Config{}
	filter, err := cfg.StreamFilter()
	require.NoError(t, err)
	assert.Nil(t, filter)
}
