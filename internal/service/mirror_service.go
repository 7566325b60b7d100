package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
)

// ChatClient 外部平台客户端，注入给同步器而不是当全局态用。
// IsMessageGone 区分"消息已不存在"与其它失败：前者走自愈，后者只记日志。
type ChatClient interface {
	SendStatusMessage(ctx context.Context, channelID string, e pkg.StatusEmbed) (string, error)
	EditStatusMessage(ctx context.Context, channelID, messageID string, e pkg.StatusEmbed) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	IsMessageGone(err error) bool
}

type mirrorStore interface {
	FindByMember(ctx context.Context, memberID uint64) (*model.MirrorRecord, error)
	Save(ctx context.Context, rec *model.MirrorRecord) error
	DeleteByMember(ctx context.Context, memberID uint64) error
}

// MirrorService 把每份申请镜像成外部频道里的一条状态消息。
// 远端调用带超时上限，失败不无限重试；远端消息被人工删除时
// 外部状态为准：删掉本地记录，静默自愈。
type MirrorService struct {
	chat    ChatClient
	store   mirrorStore
	users   userFinder
	timeout time.Duration
}

func NewMirrorService(chat ChatClient) *MirrorService {
	return &MirrorService{
		chat:    chat,
		store:   &mysql.MirrorRepository{DB: mysql.DB},
		users:   &mysql.UserRepository{DB: mysql.DB},
		timeout: 5 * time.Second,
	}
}

func (s *MirrorService) enabled(roster *model.Roster) bool {
	return s.chat != nil && roster != nil && roster.GuildID != "" && roster.ChannelID != ""
}

func (s *MirrorService) displayName(m *model.Member) string {
	if u, err := s.users.FindByID(m.UserID); err == nil && u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("Applicant #%d", m.UserID)
}

func (s *MirrorService) embed(m *model.Member, status string, removed bool) pkg.StatusEmbed {
	e := pkg.StatusEmbed{
		MemberID:     m.ID,
		Author:       s.displayName(m),
		Status:       strings.ToUpper(status),
		Color:        pkg.StatusEmbedColor(status, removed),
		WithControls: !removed,
	}
	for _, a := range m.Answers {
		if !a.Visible {
			continue
		}
		e.Fields = append(e.Fields, pkg.EmbedField{Name: a.Field, Value: a.Value})
	}
	return e
}

// SyncStatus 申请状态同步。无记录则首次发送并落库；
// 有记录则编辑而不是重发（重试幂等）。编辑发现消息没了就自愈。
func (s *MirrorService) SyncStatus(ctx context.Context, roster *model.Roster, m *model.Member) error {
	if !s.enabled(roster) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.store.FindByMember(ctx, m.ID)
	if err != nil {
		return err
	}
	e := s.embed(m, m.Status, false)

	if rec == nil {
		msgID, err := s.chat.SendStatusMessage(ctx, roster.ChannelID, e)
		if err != nil {
			return err
		}
		return s.store.Save(ctx, &model.MirrorRecord{
			MemberID:  m.ID,
			GuildID:   roster.GuildID,
			ChannelID: roster.ChannelID,
			MessageID: msgID,
		})
	}

	if err = s.chat.EditStatusMessage(ctx, rec.ChannelID, rec.MessageID, e); err != nil {
		if s.chat.IsMessageGone(err) {
			// 人已在频道里删了消息，以外部状态为准
			log.Printf("mirror healed member=%d msg=%s", m.ID, rec.MessageID)
			return s.store.DeleteByMember(ctx, m.ID)
		}
		return err
	}
	return nil
}

// Finalize 成员被移出：消息保留作审计痕迹（去掉按钮、换终态配色），
// 本地记录删除——成员行已经没了
func (s *MirrorService) Finalize(ctx context.Context, roster *model.Roster, m *model.Member) error {
	if !s.enabled(roster) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.store.FindByMember(ctx, m.ID)
	if err != nil || rec == nil {
		return err
	}
	e := s.embed(m, "removed", true)
	if err = s.chat.EditStatusMessage(ctx, rec.ChannelID, rec.MessageID, e); err != nil && !s.chat.IsMessageGone(err) {
		// 编辑失败也要删记录：成员已硬删，记录留着只会悬空
		log.Printf("mirror finalize edit err member=%d: %v", m.ID, err)
	}
	return s.store.DeleteByMember(ctx, m.ID)
}

// Purge 主动退出（申请撤回）：远端消息直接删除。
// 无论远端删除成败，本地记录一律删。
func (s *MirrorService) Purge(ctx context.Context, m *model.Member) error {
	if s.chat == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.store.FindByMember(ctx, m.ID)
	if err != nil || rec == nil {
		return err
	}
	if err = s.chat.DeleteMessage(ctx, rec.ChannelID, rec.MessageID); err != nil && !s.chat.IsMessageGone(err) {
		log.Printf("mirror purge delete err member=%d: %v", m.ID, err)
	}
	return s.store.DeleteByMember(ctx, m.ID)
}
