package filemode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileModeString(t *testing.T) {
	cases := []struct {
		mode FileMode
		want string
	}{
		{Missing, "missing"},
		{Regular, "regular-file"},
		{Executable, "executable-file"},
		{Dir, "tree"},
		{Gitlink, "gitlink"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.mode.String())
	}
}

func TestFileModeIsFile(t *testing.T) {
	assert.True(t, Regular.IsFile())
	assert.True(t, Executable.IsFile())
	assert.False(t, Dir.IsFile())
	assert.False(t, Gitlink.IsFile())
	assert.False(t, Missing.IsFile())
}

func TestFileModeIsDir(t *testing.T) {
	assert.True(t, Dir.IsDir())
	assert.False(t, Regular.IsDir())
}
