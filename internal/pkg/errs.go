package pkg

import "errors"

// 错误分层：鉴权/校验在写之前同步返回；约束类在事务内触发回滚；
// 提交后的旁路失败只记日志，永远不改写已成功的响应
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotMember        = errors.New("not a roster member")
	ErrValidation       = errors.New("invalid params")
	ErrNotFound         = errors.New("not found")
	ErrConstraint       = errors.New("constraint violated")
)
