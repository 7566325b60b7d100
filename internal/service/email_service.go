package service

import (
	"fmt"

	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/redis"
)

// 各场景的邮件文案
var codeMailCopy = map[string]struct {
	action  string
	subject string
}{
	redis.ScopeRegister: {action: "注册验证", subject: "注册验证码"},
	redis.ScopeReset:    {action: "重置密码", subject: "密码重置验证码"},
}

type EmailService struct {
	mailer *pkg.Mailer
	codes  *redis.CodeRepository
}

func NewEmailService(cfg pkg.SMTPConfig) *EmailService {
	return &EmailService{mailer: pkg.NewMailer(cfg), codes: &redis.CodeRepository{}}
}

// SendCode 两阶段投递：先写 pending，邮件发成功后转 confirmed，
// 发送失败删 pending，不留下可被校验的半成品
func (s *EmailService) SendCode(scope, email string) error {
	text, ok := codeMailCopy[scope]
	if !ok {
		return fmt.Errorf("unknown code scope %q", scope)
	}

	code, err := pkg.NumericCode(6)
	if err != nil {
		return err
	}
	if err = s.codes.PutPending(scope, email, code); err != nil {
		return err
	}

	html := pkg.CodeMailHTML(text.action, code, redis.CodeTTL)
	if err = s.mailer.Send(email, text.subject, html); err != nil {
		_ = s.codes.DropPending(scope, email)
		return err
	}
	return s.codes.Confirm(scope, email)
}

// VerifyCode 校验并一次性销毁
func (s *EmailService) VerifyCode(scope, email, code string) (bool, error) {
	val, err := s.codes.GetConfirmed(scope, email)
	if err != nil {
		return false, err
	}
	if val != code {
		return false, nil
	}
	if err = s.codes.DeleteConfirmed(scope, email); err != nil {
		return false, err
	}
	return true, nil
}
