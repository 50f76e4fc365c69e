package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductStoreResolveMemoizes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewProductStore(db, "/product/%s", 16, time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, slug FROM products WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "slug"}).AddRow("Blue Mug", "blue-mug"))

	for i := 0; i < 2; i++ {
		info, err := s.Resolve(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, "Blue Mug", info.Name)
		assert.Equal(t, "/product/blue-mug", info.URL)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductStoreResolveNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewProductStore(db, "/product/%s", 16, time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products")).
		WillReturnError(sql.ErrNoRows)

	_, err = s.Resolve(context.Background(), 7)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUserStoreCreateUserDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewUserStore(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, hashed_password, role)")).
		WithArgs("a@example.com", []byte("hash"), "shop_manager").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err = s.CreateUser(context.Background(), "a@example.com", []byte("hash"), "")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUserStoreGetUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewUserStore(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "role", "created_at", "updated_at"}).
			AddRow(1, "a@example.com", []byte("hash"), "administrator", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	user, err := s.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "administrator", user.Role)

	_, err = s.GetUserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
