package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the closed set of security log codes.
type AuditAction string

const (
	AuditLoginSuccess       AuditAction = "login_success"
	AuditLoginFailed        AuditAction = "login_failed"
	AuditUserLocked         AuditAction = "user_locked"
	AuditLogout             AuditAction = "logout"
	AuditTokenRefreshed     AuditAction = "token_refreshed"
	AuditUnauthorizedAccess AuditAction = "unauthorized_access"
	AuditPasswordChanged    AuditAction = "password_changed"
	AuditPasswordReset      AuditAction = "password_reset"
	AuditEmailVerified      AuditAction = "email_verified"
	AuditUserCreated        AuditAction = "user_created"
	AuditUserDeactivated    AuditAction = "user_deactivated"
	AuditRoleAssigned       AuditAction = "role_assigned"
	AuditRoleRevoked        AuditAction = "role_revoked"
	AuditAPIKeyCreated      AuditAction = "api_key_created"
	AuditAPIKeyRevoked      AuditAction = "api_key_revoked"
	AuditOrgCreated         AuditAction = "org_created"
	AuditOrgDeactivated     AuditAction = "org_deactivated"
	AuditChannelCreated     AuditAction = "channel_created"
	AuditChannelUpdated     AuditAction = "channel_updated"
	AuditChannelDeleted     AuditAction = "channel_deleted"
	AuditWebhookRejected    AuditAction = "webhook_rejected"
)

// AuditLog is an immutable append-only security record. The application never
// updates or deletes rows; retention is handled by partition aging (7 years).
type AuditLog struct {
	ID             uuid.UUID
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
	Action         AuditAction
	ResourceType   string
	ResourceID     *uuid.UUID
	IPAddress      string
	UserAgent      string
	Metadata       map[string]any
	CreatedAt      time.Time
}
