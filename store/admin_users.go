package store

import (
	"context"
	"time"
)

type AdminUser struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

func (c *queries) CreateAdminUser(ctx context.Context, username, passwordHash, role string) error {
	if role == "" {
		role = "staff"
	}
	_, err := c.q.ExecContext(ctx, c.Q(`INSERT INTO admin_users (username, password_hash, role) VALUES (?, ?, ?)`), username, passwordHash, role)
	return err
}

func (c *queries) GetAdminUser(ctx context.Context, username string) (*AdminUser, error) {
	var u AdminUser
	var createdAt any
	err := c.q.QueryRowContext(ctx, c.Q(`SELECT id, username, password_hash, role, created_at FROM admin_users WHERE username=?`), username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (c *queries) AdminUserExists(ctx context.Context) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count)
	return count > 0, err
}
