package model

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tryon/internal/auth"
	"tryon/internal/config"
	"tryon/internal/entity"
)

// SeedAdminUser 在用户表为空时创建初始管理员账号。
// 未配置 ADMIN_EMAIL/ADMIN_PASSWORD 或已有用户时跳过。
func SeedAdminUser(ctx context.Context, repo Repository, cfg *config.Config) error {
	if repo == nil {
		return fmt.Errorf("repository is nil")
	}
	if cfg == nil || cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logrus.Debug("admin seed skipped: no admin credentials configured")
		return nil
	}

	count, err := repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &entity.DbUser{
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		DisplayName:  "Administrator",
		Role:         entity.UserRoleAdmin,
		IsActive:     true,
	}
	if err := repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logrus.WithField("email", cfg.AdminEmail).Info("seeded initial admin user")
	return nil
}
