package generic

import (
	"sort"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet[string]()
	assert.Equal(0, s.Count())
	assert.False(s.Contains("mp4"))
	assert.True(s.Add("mp4"))
	assert.Equal(1, s.Count())
	assert.True(s.Contains("mp4"))
	assert.False(s.Add("mp4"), "re-adding should report no change")
	assert.Equal(1, s.Count())
	assert.True(s.Remove("mp4"))
	assert.False(s.Remove("mp4"), "re-removing should report no change")
	assert.Equal(0, s.Count())

	s2 := NewSet("http", "https")
	assert.True(s2.Contains("http"))
	assert.True(s2.Contains("http", "https"))
	assert.False(s2.Contains("http", "ftp"))

	s3 := s2.Clone()
	assert.True(s3.Add("ftp"))
	assert.False(s2.Contains("ftp"), "clone should not share state")
	items := s3.ToSlice()
	sort.Strings(items)
	assert.Equal([]string{"ftp", "http", "https"}, items)
}
