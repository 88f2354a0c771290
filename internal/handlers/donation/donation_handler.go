// internal/handlers/donation/donation_handler.go
package donation

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"segmentbook-service/internal/domain/donation"
	"segmentbook-service/internal/middleware"
	"segmentbook-service/internal/pkg/response"
)

type Service interface {
	RequestBook(ctx context.Context, requesterID, bookID string) (*donation.Request, error)
	Accept(ctx context.Context, donorID, requestID string) (*donation.AcceptResult, error)
	Reject(ctx context.Context, donorID, requestID string) error
	ActiveReceived(ctx context.Context, userID string) ([]donation.ActiveRequest, error)
	ActiveSent(ctx context.Context, userID string) ([]donation.ActiveRequest, error)
	ListMine(ctx context.Context, userID string, f *donation.ListFilters) (*donation.RequestPage, error)
}

type DonationHandler struct {
	service Service
}

func NewDonationHandler(service Service) *DonationHandler {
	return &DonationHandler{service: service}
}

// RequestBook POST /books/:id/requests
func (h *DonationHandler) RequestBook(c *gin.Context) {
	bookID, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	req, err := h.service.RequestBook(c.Request.Context(), middleware.MustGetUserID(c), bookID)
	if err != nil {
		response.FromError(c, "failed to request book", err)
		return
	}
	response.Success(c, http.StatusCreated, "book requested", req)
}

// ListMine GET /requests
func (h *DonationHandler) ListMine(c *gin.Context) {
	var f donation.ListFilters
	if err := c.ShouldBindQuery(&f); err != nil {
		response.BindError(c, err)
		return
	}
	page, err := h.service.ListMine(c.Request.Context(), middleware.MustGetUserID(c), &f)
	if err != nil {
		response.FromError(c, "failed to list requests", err)
		return
	}
	response.Success(c, http.StatusOK, "requests retrieved", page)
}

// ActiveReceived GET /requests/active/received
func (h *DonationHandler) ActiveReceived(c *gin.Context) {
	list, err := h.service.ActiveReceived(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to list requests", err)
		return
	}
	response.Success(c, http.StatusOK, "requests retrieved", list)
}

// ActiveSent GET /requests/active/sent
func (h *DonationHandler) ActiveSent(c *gin.Context) {
	list, err := h.service.ActiveSent(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to list requests", err)
		return
	}
	response.Success(c, http.StatusOK, "requests retrieved", list)
}

// Accept POST /requests/:id/accept
func (h *DonationHandler) Accept(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.service.Accept(c.Request.Context(), middleware.MustGetUserID(c), id)
	if err != nil {
		response.FromError(c, "failed to accept request", err)
		return
	}
	response.Success(c, http.StatusOK, "request accepted", res)
}

// Reject POST /requests/:id/reject
func (h *DonationHandler) Reject(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Reject(c.Request.Context(), middleware.MustGetUserID(c), id); err != nil {
		response.FromError(c, "failed to reject request", err)
		return
	}
	response.Success(c, http.StatusOK, "request rejected", nil)
}
