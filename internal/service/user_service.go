package service

import (
	"errors"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
	"Guild_Roster/internal/repository/redis"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	repo     *mysql.UserRepository
	sessions *redis.SessionRepository
	emailSvc *EmailService
}

func NewUserService(emailCfg pkg.SMTPConfig) *UserService {
	return &UserService{
		repo:     &mysql.UserRepository{DB: mysql.DB},
		sessions: &redis.SessionRepository{},
		emailSvc: NewEmailService(emailCfg),
	}
}

func (s *UserService) Register(username, password, email, code string) error {
	ok, err := s.emailSvc.VerifyCode(redis.ScopeRegister, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("verification failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.Create(&model.User{
		Username: username,
		Password: string(hash),
		Email:    email,
	})
}

func (s *UserService) Login(username, password string) (*pkg.Pair, error) {
	user, err := s.repo.FindByUsername(username)
	if err != nil {
		return nil, errors.New("user not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, errors.New("invalid password")
	}

	pair, err := pkg.GeneratePair(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	// 单点登录：新会话覆盖旧会话
	if err = s.sessions.Save(user.ID, pair.AccessToken); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *UserService) Logout(usrID uint64) error {
	return s.sessions.Drop(usrID)
}

// ResetPassword 忘记密码走邮箱验证码
func (s *UserService) ResetPassword(email, code, newPassword string) error {
	ok, err := s.emailSvc.VerifyCode(redis.ScopeReset, email, code)
	if err != nil || !ok {
		return errors.New("verification failed")
	}

	user, err := s.repo.FindByEmail(email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(user, string(hash))
}

func (s *UserService) Refresh(refreshToken string) (*pkg.Pair, error) {
	return pkg.Refresh(refreshToken)
}

// ChangePassword 登录态修改密码，改完强制重新登录
func (s *UserService) ChangePassword(usrID uint64, oldPassword, newPassword string) error {
	user, err := s.repo.FindByID(usrID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return errors.New("old password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err = s.repo.UpdatePassword(user, string(hash)); err != nil {
		return err
	}
	return s.Logout(usrID)
}
