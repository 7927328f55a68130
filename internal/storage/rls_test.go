package storage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/storage"
	"github.com/hyrelay/hyrelay/internal/tenant"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a migrated database; set DATABASE_URL to run them.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := storage.NewPostgres(url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedOrgWithUser(t *testing.T, pool *pgxpool.Pool) (*domain.Organization, *domain.User) {
	t.Helper()
	ctx := context.Background()

	org, err := domain.NewOrganization("Isolation Test", fmt.Sprintf("iso-%s", uuid.New()), "")
	require.NoError(t, err)
	email, err := domain.NewEmail(fmt.Sprintf("%s@example.com", uuid.New()))
	require.NoError(t, err)
	user, err := domain.NewUser(org.ID, email, domain.PasswordHash("x"), "Isolation Tester")
	require.NoError(t, err)

	err = storage.WithSystem(ctx, pool, func(uow *storage.UnitOfWork) error {
		if err := uow.Organizations().Add(ctx, org); err != nil {
			return err
		}
		if err := uow.SetTenantContext(ctx, tenant.Context{TenantID: org.ID}); err != nil {
			return err
		}
		return uow.Users().Add(ctx, user)
	})
	require.NoError(t, err)
	return org, user
}

// A session that applies neither the system bypass nor a tenant must see zero
// rows, even though the rows exist.
func TestRLS_SessionWithoutContextSeesNothing(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	org, _ := seedOrgWithUser(t, pool)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM identity.users WHERE organization_id = $1", org.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRLS_TenantCannotSeeForeignRows(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	orgA, userA := seedOrgWithUser(t, pool)
	_, userB := seedOrgWithUser(t, pool)

	err := storage.WithTenant(ctx, pool, tenant.Context{TenantID: orgA.ID}, func(uow *storage.UnitOfWork) error {
		if _, err := uow.Users().GetByID(ctx, userA.ID); err != nil {
			return err
		}

		_, err := uow.Users().GetByID(ctx, userB.ID)
		assert.True(t, domain.IsCode(err, domain.CodeNotFound))

		count, err := uow.Users().Count(ctx, nil)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), count)
		return nil
	})
	require.NoError(t, err)
}

func TestUnitOfWork_OutboxRowsShareTheTransaction(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	t.Run("commit writes the event rows", func(t *testing.T) {
		org, err := domain.NewOrganization("Outbox Commit", fmt.Sprintf("obc-%s", uuid.New()), "")
		require.NoError(t, err)

		err = storage.WithSystem(ctx, pool, func(uow *storage.UnitOfWork) error {
			if err := uow.Organizations().Add(ctx, org); err != nil {
				return err
			}
			uow.Track(org)
			return nil
		})
		require.NoError(t, err)

		var count int
		err = pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM shared.outbox_events WHERE aggregate_id = $1", org.ID).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("rollback leaves neither business row nor event", func(t *testing.T) {
		org, err := domain.NewOrganization("Outbox Rollback", fmt.Sprintf("obr-%s", uuid.New()), "")
		require.NoError(t, err)

		sentinel := errors.New("abort")
		err = storage.WithSystem(ctx, pool, func(uow *storage.UnitOfWork) error {
			if err := uow.Organizations().Add(ctx, org); err != nil {
				return err
			}
			uow.Track(org)
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)

		var orgCount, eventCount int
		require.NoError(t, pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM identity.organizations WHERE id = $1", org.ID).Scan(&orgCount))
		require.NoError(t, pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM shared.outbox_events WHERE aggregate_id = $1", org.ID).Scan(&eventCount))
		assert.Equal(t, 0, orgCount)
		assert.Equal(t, 0, eventCount)
	})
}
