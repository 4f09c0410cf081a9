package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestHandlePostgresError(t *testing.T) {
	c := &Catalog{}

	err := c.handlePostgresError("get content", pgx.ErrNoRows)
	assert.ErrorIs(t, err, simplemedia.ErrContentNotFound)

	err = c.handlePostgresError("update content", &pgconn.PgError{Code: "23514", ConstraintName: "media_content_views_check"})
	assert.ErrorIs(t, err, simplemedia.ErrInvalidPatch)

	err = c.handlePostgresError("put content", &pgconn.PgError{Code: "42P01"})
	assert.EqualError(t, err, "table does not exist - database migration required")

	cause := errors.New("connection reset")
	err = c.handlePostgresError("list content", cause)
	assert.ErrorIs(t, err, cause)
}
