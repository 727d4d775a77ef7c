package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_SemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.True(t, semver.MatchString(Version), "got %q", Version)
}

func TestString(t *testing.T) {
	s := String()

	assert.Contains(t, s, "fuzzidx "+Version)
	assert.Contains(t, s, "commit: "+Commit)
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_JSON(t *testing.T) {
	// Given build info
	info := GetInfo()

	// When encoded
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then the snake_case keys are present
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "fuzzidx", decoded["name"])
	assert.Equal(t, Version, decoded["version"])
	assert.Equal(t, runtime.Version(), decoded["go_version"])
	assert.Equal(t, runtime.GOARCH, decoded["arch"])
}
