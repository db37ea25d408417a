package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLowercaseTags(t *testing.T) {
	raw := `<TimelineObject><id>1001</id><username>wxid_alice</username><createTime>1734500000</createTime>` +
		`<contentDesc>Morning run</contentDesc><ContentObject><contentStyle>1</contentStyle><mediaList>` +
		`<media><type>2</type><url>https://img.example.invalid/a.jpg</url><thumb>https://img.example.invalid/a_t.jpg</thumb></media>` +
		`<media><type>6</type><url></url><thumb>https://img.example.invalid/v_t.jpg</thumb></media>` +
		`</mediaList></ContentObject></TimelineObject>`

	c, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "Morning run", c.Text)
	assert.Equal(t, "wxid_alice", c.Author)
	assert.Equal(t, "1734500000", c.CreateTime)
	assert.Equal(t, []Media{
		{Type: "image", URL: "https://img.example.invalid/a.jpg", Thumb: "https://img.example.invalid/a_t.jpg"},
		{Type: "video", URL: "https://img.example.invalid/v_t.jpg", Thumb: "https://img.example.invalid/v_t.jpg"},
	}, c.Media)
}

func TestParseCapitalisedTagsWithAttributes(t *testing.T) {
	raw := `<TimelineObject><ContentDesc>Dinner &amp; drinks</ContentDesc><ContentObject><MediaList>` +
		`<Media><Type>2</Type><Url type="1">http://x.invalid/1.jpg</Url><Thumb type="1">http://x.invalid/1t.jpg</Thumb></Media>` +
		`</MediaList></ContentObject></TimelineObject>`

	c, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "Dinner & drinks", c.Text)
	require.Len(t, c.Media, 1)
	assert.Equal(t, "http://x.invalid/1.jpg", c.Media[0].URL)
}

func TestParseSkipsLeadingGarbageAndControlChars(t *testing.T) {
	raw := "\x08\x01\x12\x05junk<TimelineObject><contentDesc>hi\x00 there</contentDesc></TimelineObject>trailing"

	c, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "hi there", c.Text)
	assert.Empty(t, c.Media)
	assert.NotNil(t, c.Media)
}

func TestParseDropsMediaWithoutAddress(t *testing.T) {
	raw := `<TimelineObject><ContentObject><mediaList><media><type>2</type></media></mediaList></ContentObject></TimelineObject>`

	c, ok := Parse(raw)
	require.True(t, ok)
	assert.Empty(t, c.Media)
}

func TestParseNestedContentDescIgnored(t *testing.T) {
	raw := `<TimelineObject><contentDesc>top</contentDesc><ContentObject><contentDesc>inner</contentDesc></ContentObject></TimelineObject>`

	c, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "top", c.Text)
}

func TestParseNotTimeline(t *testing.T) {
	for _, raw := range []string{"", "plain text post", "\x08\x01\x12binary"} {
		c, ok := Parse(raw)
		assert.False(t, ok, raw)
		assert.Equal(t, Content{}, c)
	}
}
