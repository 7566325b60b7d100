package service

import (
	"fmt"
	"log"

	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
)

// NotifyService 审批结果邮件通知。提交后旁路，尽力而为。
type NotifyService struct {
	mailer *pkg.Mailer
	users  userFinder
}

func NewNotifyService(cfg pkg.SMTPConfig) *NotifyService {
	return &NotifyService{
		mailer: pkg.NewMailer(cfg),
		users:  &mysql.UserRepository{DB: mysql.DB},
	}
}

func (s *NotifyService) NotifyStatus(toUserID uint64, rosterName, status string) {
	user, err := s.users.FindByID(toUserID)
	if err != nil || user.Email == "" {
		return
	}
	subject := fmt.Sprintf("[%s] 入队申请结果", rosterName)
	body := fmt.Sprintf(`<p>您好，</p><p>您在 <b>%s</b> 的入队申请状态已更新为：<b>%s</b>。</p>`, rosterName, status)
	if err = s.mailer.Send(user.Email, subject, body); err != nil {
		log.Printf("notify mail err user=%d: %v", toUserID, err)
	}
}
