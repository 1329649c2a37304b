package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "0", Number(0))
	assert.Equal(t, "584", Number(584))
	assert.Equal(t, "1,234", Number(1234))
	assert.Equal(t, "1,234,567", Number(1234567))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "0s", Duration(500*time.Millisecond))
	assert.Equal(t, "5.2s", Duration(5200*time.Millisecond))
	assert.Equal(t, "3m5.0s", Duration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h15m", Duration(2*time.Hour+15*time.Minute))
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "584 B", Bytes(584))
	assert.Equal(t, "1.0 KiB", Bytes(1024))
	assert.Equal(t, "12.0 MiB", Bytes(12*1024*1024))
	assert.Equal(t, "1.5 GiB", Bytes(3*512*1024*1024))
}
