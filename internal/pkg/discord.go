package pkg

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// 状态消息配色
const (
	EmbedColorPending  = 0x95a5a6
	EmbedColorApproved = 0x2ecc71
	EmbedColorRejected = 0xe74c3c
	EmbedColorRemoved  = 0x2c3e50
)

type EmbedField struct {
	Name  string
	Value string
}

// StatusEmbed 申请状态消息的领域描述，与具体平台的消息结构解耦
type StatusEmbed struct {
	MemberID     uint64
	Author       string
	Status       string
	Color        int
	Fields       []EmbedField
	WithControls bool
}

type DiscordConfig struct {
	Token string
}

// DiscordClient 对外部平台连接的唯一句柄，作为依赖注入给镜像同步器，
// 连接生命周期（Open/Close）与单次请求处理分离
type DiscordClient struct {
	s *discordgo.Session
}

func NewDiscordClient(cfg DiscordConfig) (*DiscordClient, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	return &DiscordClient{s: s}, nil
}

func (c *DiscordClient) Open() error  { return c.s.Open() }
func (c *DiscordClient) Close() error { return c.s.Close() }

func (c *DiscordClient) render(e StatusEmbed) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       e.Author,
		Description: "Status: " + e.Status,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  f.Name,
			Value: f.Value,
		})
	}

	if !e.WithControls {
		return embed, []discordgo.MessageComponent{}
	}
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{
			Label:    "Approve",
			Style:    discordgo.SuccessButton,
			CustomID: fmt.Sprintf("roster:approve:%d", e.MemberID),
		},
		discordgo.Button{
			Label:    "Reject",
			Style:    discordgo.DangerButton,
			CustomID: fmt.Sprintf("roster:reject:%d", e.MemberID),
		},
		discordgo.Button{
			Label:    "Remove",
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("roster:remove:%d", e.MemberID),
		},
	}}
	return embed, []discordgo.MessageComponent{row}
}

func (c *DiscordClient) SendStatusMessage(ctx context.Context, channelID string, e StatusEmbed) (string, error) {
	embed, components := c.render(e)
	msg, err := c.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (c *DiscordClient) EditStatusMessage(ctx context.Context, channelID, messageID string, e StatusEmbed) error {
	embed, components := c.render(e)
	_, err := c.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}

func (c *DiscordClient) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// IsMessageGone 远端消息已被人工删除的判定，镜像的自愈分支依赖它
func (c *DiscordClient) IsMessageGone(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		return rest.Message.Code == discordgo.ErrCodeUnknownMessage
	}
	return false
}

// StatusEmbedColor 状态到配色的映射
func StatusEmbedColor(status string, removed bool) int {
	if removed {
		return EmbedColorRemoved
	}
	switch status {
	case "approved":
		return EmbedColorApproved
	case "rejected":
		return EmbedColorRejected
	default:
		return EmbedColorPending
	}
}
