package book

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmentbook-service/internal/domain/book"
	"segmentbook-service/internal/middleware"
	xerrors "segmentbook-service/internal/pkg/errors"
	"segmentbook-service/internal/pkg/validation"
)

const bookID = "6f1c8a52-9a43-4c84-9d0e-2a7a4b1f4c11"

type fakeBooks struct {
	lastFilters *book.ListFilters
}

func (f *fakeBooks) Create(_ context.Context, ownerID string, req *book.CreateBookRequest) (*book.Book, error) {
	return &book.Book{ID: bookID, OwnerID: ownerID, Title: req.Title}, nil
}

func (f *fakeBooks) Update(_ context.Context, ownerID, id string, _ *book.UpdateBookRequest) (*book.Book, error) {
	return nil, xerrors.New(xerrors.ErrForbidden, "You can only edit your own books")
}

func (f *fakeBooks) Get(_ context.Context, id string) (*book.Book, error) {
	return nil, xerrors.New(xerrors.ErrNotFound, "Book not found")
}

func (f *fakeBooks) ListAvailable(_ context.Context, lf *book.ListFilters) (*book.BookPage, error) {
	f.lastFilters = lf
	return &book.BookPage{Books: []book.Book{{ID: bookID, Title: "Dune"}}, Total: 1}, nil
}

func (f *fakeBooks) ListOwn(context.Context, string, *book.OwnFilters) (*book.BookPage, error) {
	return &book.BookPage{Books: []book.Book{}}, nil
}

func (f *fakeBooks) ListedNotDonated(context.Context, string) ([]book.Book, error) {
	return []book.Book{}, nil
}

func (f *fakeBooks) TotalDonated(context.Context, string) (int, error) { return 3, nil }

func (f *fakeBooks) Received(context.Context, string) ([]book.ReceivedBook, error) {
	return []book.ReceivedBook{}, nil
}

type fakeDonor struct{ recipient string }

func (f *fakeDonor) MarkDonated(_ context.Context, _, _, recipient string) error {
	f.recipient = recipient
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setup() (*gin.Engine, *fakeBooks, *fakeDonor) {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
	books, donor := &fakeBooks{}, &fakeDonor{}
	h := NewBookHandler(books, donor)

	r := gin.New()
	auth := func(c *gin.Context) { c.Set(middleware.ContextUserID, "u1") }
	r.GET("/books", h.ListAvailable)
	r.GET("/books/:id", h.Get)
	r.POST("/books", auth, h.Create)
	r.PUT("/books/:id", auth, h.Update)
	r.POST("/books/:id/mark-donated", auth, h.MarkDonated)
	r.GET("/users/me/donations/total", auth, h.TotalDonated)
	return r, books, donor
}

func call(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestListAvailableBindsQuery(t *testing.T) {
	r, books, _ := setup()

	code, env := call(t, r, http.MethodGet, "/books?search=dune&condition=good&page=2&page_size=5", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, "dune", books.lastFilters.Search)
	assert.Equal(t, "good", books.lastFilters.Condition)
	assert.Equal(t, 2, books.lastFilters.Page)
	assert.Equal(t, 5, books.lastFilters.PageSize)

	var page book.BookPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Total)

	code, _ = call(t, r, http.MethodGet, "/books?condition=mint", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestErrorsCarryUserMessages(t *testing.T) {
	r, _, _ := setup()

	code, env := call(t, r, http.MethodGet, "/books/"+bookID, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Book not found", env.Error)

	code, env = call(t, r, http.MethodPut, "/books/"+bookID, `{"title":"t","author":"a"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You can only edit your own books", env.Error)

	code, _ = call(t, r, http.MethodGet, "/books/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreate(t *testing.T) {
	r, _, _ := setup()

	code, env := call(t, r, http.MethodPost, "/books",
		`{"title":"Dune","author":"Frank Herbert","condition":"good","language":"English"}`)
	require.Equal(t, http.StatusCreated, code)
	var b book.Book
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, "u1", b.OwnerID)

	code, env = call(t, r, http.MethodPost, "/books", `{"title":"Dune"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Error)
}

func TestMarkDonatedAndTotal(t *testing.T) {
	r, _, donor := setup()

	code, _ := call(t, r, http.MethodPost, "/books/"+bookID+"/mark-donated", `{"recipient_username":"reader_1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reader_1", donor.recipient)

	code, env := call(t, r, http.MethodGet, "/users/me/donations/total", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"total":3}`, string(env.Data))
}
