package pkg

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusEmbedColor(t *testing.T) {
	assert.Equal(t, EmbedColorPending, StatusEmbedColor("pending", false))
	assert.Equal(t, EmbedColorApproved, StatusEmbedColor("approved", false))
	assert.Equal(t, EmbedColorRejected, StatusEmbedColor("rejected", false))
	// removed 压过一切状态
	assert.Equal(t, EmbedColorRemoved, StatusEmbedColor("approved", true))
	assert.Equal(t, EmbedColorPending, StatusEmbedColor("whatever", false))
}

func TestRender_WithControls(t *testing.T) {
	c := &DiscordClient{}
	embed, components := c.render(StatusEmbed{
		MemberID:     11,
		Author:       "alice",
		Status:       "PENDING",
		Color:        EmbedColorPending,
		Fields:       []EmbedField{{Name: "class", Value: "mage"}},
		WithControls: true,
	})

	assert.Equal(t, "alice", embed.Title)
	assert.Equal(t, "Status: PENDING", embed.Description)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "class", embed.Fields[0].Name)

	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 3)
	btn := row.Components[0].(discordgo.Button)
	assert.Equal(t, "roster:approve:11", btn.CustomID)
}

func TestRender_RemovedStripsControls(t *testing.T) {
	c := &DiscordClient{}
	_, components := c.render(StatusEmbed{Author: "alice", Status: "REMOVED"})
	assert.Empty(t, components)
}

func TestIsMessageGone(t *testing.T) {
	c := &DiscordClient{}
	gone := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage}}
	other := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}

	assert.True(t, c.IsMessageGone(gone))
	assert.False(t, c.IsMessageGone(other))
	assert.False(t, c.IsMessageGone(nil))
	assert.False(t, c.IsMessageGone(assert.AnError))
}
